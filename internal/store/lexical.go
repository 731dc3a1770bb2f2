package store

import (
	"sort"
	"strings"

	"github.com/vthunder/engram/internal/engerr"
)

// LexicalCandidate is one result of a keyword search.
type LexicalCandidate struct {
	ID    string
	Score float64 // higher is more relevant; BM25-derived or Jaccard-derived
}

// LexicalCandidates returns up to limit memories ranked by textual
// relevance to the keywords, using the FTS5 mirror and falling back to a
// Go-side scan (matching internal/graph/activation.go's
// FindTracesWithKeywords).
func (s *Store) LexicalCandidates(keywords []string, limit int) ([]LexicalCandidate, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if out, err := s.lexicalCandidatesFTS(keywords, limit); err == nil {
		return out, nil
	}
	return s.lexicalCandidatesScan(keywords, limit)
}

func (s *Store) lexicalCandidatesFTS(keywords []string, limit int) ([]LexicalCandidate, error) {
	query := ftsQuery(keywords)
	rows, err := s.db.Query(`
		SELECT m.id, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LexicalCandidate
	for rows.Next() {
		var id string
		var bm25 float64
		if err := rows.Scan(&id, &bm25); err != nil {
			continue
		}
		// bm25() returns lower-is-better; invert so higher Score means more
		// relevant, matching VectorCandidate's convention.
		out = append(out, LexicalCandidate{ID: id, Score: -bm25})
	}
	return out, rows.Err()
}

// lexicalCandidatesScan falls back to a Jaccard-style overlap scan when
// FTS5 is unavailable or the query has no indexable terms.
func (s *Store) lexicalCandidatesScan(keywords []string, limit int) ([]LexicalCandidate, error) {
	rows, err := s.db.Query(`SELECT id, content FROM memories`)
	if err != nil {
		return nil, engerr.ErrUnavailable
	}
	defer rows.Close()

	kwSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kwSet[strings.ToLower(k)] = true
	}

	var out []LexicalCandidate
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			continue
		}
		score := jaccardOverlap(kwSet, content)
		if score > 0 {
			out = append(out, LexicalCandidate{ID: id, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func jaccardOverlap(kwSet map[string]bool, content string) float64 {
	words := strings.Fields(strings.ToLower(content))
	if len(words) == 0 || len(kwSet) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(words))
	hits := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if seen[w] {
			continue
		}
		seen[w] = true
		if kwSet[w] {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	union := len(seen) + len(kwSet) - hits
	if union == 0 {
		return 0
	}
	return float64(hits) / float64(union)
}

// ftsQuery builds an FTS5 MATCH expression ORing the keywords, quoting
// each term so punctuation in content can't break the query syntax.
func ftsQuery(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		parts = append(parts, `"`+strings.ReplaceAll(k, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " OR ")
}
