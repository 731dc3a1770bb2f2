package store

import (
	"database/sql"
	"fmt"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"gonum.org/v1/gonum/floats"

	"github.com/vthunder/engram/internal/engerr"
)

// checkEmbeddingDim enforces that embedding dimensionality matches the
// store-wide dimension. That dimension is fixed when the vec0 table is first
// created, which happens only when sqlite-vec is loaded; without sqlite-vec
// no dimension is fixed and embeddings of any length are accepted.
func (s *Store) checkEmbeddingDim(dim int) error {
	if s.vecDim == 0 {
		return nil // first embedding ever written fixes the dimension lazily
	}
	if dim != s.vecDim {
		return fmt.Errorf("%w: embedding dim %d does not match store dim %d", engerr.ErrInvalidArgument, dim, s.vecDim)
	}
	return nil
}

// upsertVec indexes an embedding into the vec0 table, creating the table
// (fixing the store's dimension) on first use. Vector indexing is
// best-effort: callers must not fail the memory write if this fails.
func (s *Store) upsertVec(tx *sql.Tx, id string, emb []float64) error {
	if !s.vecAvailable {
		return nil
	}
	if s.vecDim == 0 {
		if err := s.ensureVecTable(tx, len(emb)); err != nil {
			return err
		}
	}
	if len(emb) != s.vecDim {
		return fmt.Errorf("embedding dim %d does not match store dim %d", len(emb), s.vecDim)
	}

	emb32 := normalizeFloat32(float64ToFloat32(emb))
	serialized, err := sqlite_vec.SerializeFloat32(emb32)
	if err != nil {
		return err
	}
	tx.Exec(`DELETE FROM memories_vec WHERE memory_id = ?`, id)
	_, err = tx.Exec(`INSERT INTO memories_vec(memory_id, embedding) VALUES (?, ?)`, id, serialized)
	return err
}

// deleteVec removes id from the vector index, if present. Best-effort.
func (s *Store) deleteVec(id string) {
	if !s.vecAvailable {
		return
	}
	s.db.Exec(`DELETE FROM memories_vec WHERE memory_id = ?`, id)
}

// ensureVecTable creates the memories_vec virtual table for dim, matching
// internal/graph/db.go's ensureVecTable. dim is fixed for the lifetime of
// the store once set. ex is the caller's open transaction when there is
// one, so an in-memory store's single connection is not requested twice.
func (s *Store) ensureVecTable(ex sqlExecer, dim int) error {
	if s.vecDim == dim {
		return nil
	}
	if s.vecDim != 0 && s.vecDim != dim {
		return fmt.Errorf("embedding dim %d doesn't match vec table dim %d", dim, s.vecDim)
	}
	_, err := ex.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memories_vec USING vec0(
			embedding float[%d],
			+memory_id TEXT
		)
	`, dim))
	if err != nil {
		return fmt.Errorf("failed to create memories_vec(float[%d]): %w", dim, err)
	}
	s.vecDim = dim
	ex.Exec(`DELETE FROM memories_vec_meta`)
	ex.Exec(`INSERT INTO memories_vec_meta(dim) VALUES (?)`, dim)
	return nil
}

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// initVecDimFromMemories restores vecDim across restarts, matching
// internal/graph/db.go's initVecTableFromTraces.
func (s *Store) initVecDimFromMemories() error {
	var dim int
	if err := s.db.QueryRow(`SELECT dim FROM memories_vec_meta LIMIT 1`).Scan(&dim); err == nil && dim > 0 {
		return s.ensureVecTable(s.db, dim)
	}

	var embBytes []byte
	err := s.db.QueryRow(`SELECT embedding FROM memories WHERE embedding IS NOT NULL AND LENGTH(embedding) > 4 LIMIT 1`).Scan(&embBytes)
	if err != nil {
		return nil
	}
	emb, err := unmarshalEmbedding(embBytes)
	if err != nil || len(emb) == 0 {
		return nil
	}
	return s.ensureVecTable(s.db, len(emb))
}

// VectorCandidate is one result of a vector similarity search.
type VectorCandidate struct {
	ID         string
	Similarity float64 // cosine similarity in [-1, 1]
}

// VectorCandidates returns up to limit memories ranked by cosine similarity
// to queryEmbedding. Returns an empty slice if no embeddings are stored.
func (s *Store) VectorCandidates(queryEmbedding []float64, limit int) ([]VectorCandidate, error) {
	if len(queryEmbedding) == 0 {
		return nil, nil
	}
	if s.vecAvailable && s.vecDim > 0 && len(queryEmbedding) == s.vecDim {
		return s.vectorCandidatesVec(queryEmbedding, limit)
	}
	return s.vectorCandidatesScan(queryEmbedding, limit)
}

func (s *Store) vectorCandidatesVec(queryEmbedding []float64, limit int) ([]VectorCandidate, error) {
	emb32 := normalizeFloat32(float64ToFloat32(queryEmbedding))
	serialized, err := sqlite_vec.SerializeFloat32(emb32)
	if err != nil {
		return s.vectorCandidatesScan(queryEmbedding, limit)
	}

	rows, err := s.db.Query(`
		SELECT memory_id, distance
		FROM memories_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance ASC
	`, serialized, limit)
	if err != nil {
		return s.vectorCandidatesScan(queryEmbedding, limit)
	}
	defer rows.Close()

	var out []VectorCandidate
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			continue
		}
		out = append(out, VectorCandidate{ID: id, Similarity: l2ToCosineSim(dist)})
	}
	return out, nil
}

// vectorCandidatesScan is the O(n) fallback used when sqlite-vec is
// unavailable, matching internal/graph/activation.go's findSimilarTracesScan.
func (s *Store) vectorCandidatesScan(queryEmbedding []float64, limit int) ([]VectorCandidate, error) {
	rows, err := s.db.Query(`SELECT id, embedding FROM memories WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []VectorCandidate
	for rows.Next() {
		var id string
		var embBytes []byte
		if err := rows.Scan(&id, &embBytes); err != nil {
			continue
		}
		emb, err := unmarshalEmbedding(embBytes)
		if err != nil || len(emb) == 0 {
			continue
		}
		out = append(out, VectorCandidate{ID: id, Similarity: CosineSimilarity(queryEmbedding, emb)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors using gonum's floats package in place of a hand-rolled loop,
// returning 0 for mismatched or empty inputs.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	dot := floats.Dot(a, b)
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func normalizeFloat32(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func cosineDistToL2(cosineDist float64) float64 {
	return math.Sqrt(2.0 * cosineDist)
}

func l2ToCosineSim(l2dist float64) float64 {
	return 1.0 - (l2dist*l2dist)/2.0
}
