// Package lexical provides tokenization, keyword extraction, and Jaccard
// similarity for recall's no-embedding fallback path and for FTS
// query-term extraction. Tokenization uses prose/v3 the way
// memory-service/pkg/extract/prose.go does (doc.Tokens() in place of a
// hand-rolled splitter); the stop-word filtering and minimum-length rule
// mirror internal/graph/activation.go's extractKeywords.
package lexical

import (
	"strings"

	"github.com/tsawler/prose/v3"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"i": true, "me": true, "my": true, "we": true, "our": true,
	"you": true, "your": true, "he": true, "she": true, "it": true,
	"they": true, "them": true, "their": true, "this": true, "that": true,
	"what": true, "which": true, "who": true, "whom": true, "whose": true,
	"where": true, "when": true, "why": true, "how": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"than": true, "so": true, "as": true, "of": true, "at": true,
	"by": true, "for": true, "with": true, "about": true, "into": true,
	"to": true, "from": true, "in": true, "on": true, "up": true,
	"out": true, "off": true, "over": true, "under": true,
}

// Tokenize splits text into lowercase word tokens using prose/v3, falling
// back to a plain whitespace split if prose fails to parse (e.g. on
// pathological input).
func Tokenize(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		return strings.Fields(strings.ToLower(text))
	}
	var out []string
	for _, tok := range doc.Tokens() {
		w := strings.ToLower(strings.TrimFunc(tok.Text, isPunct))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func isPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '(', ')':
		return true
	}
	return false
}

// Keywords extracts searchable keywords from query text: lowercased,
// tokenized, filtered to words of length >= 3 that aren't stop words,
// matching extractKeywords.
func Keywords(text string) []string {
	var out []string
	for _, w := range Tokenize(text) {
		if len(w) >= 3 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// JaccardSimilarity computes the Jaccard index between the token sets of
// two strings, used as the semantic similarity fallback when a candidate
// has no embedding.
func JaccardSimilarity(a, b string) float64 {
	setA := toSet(Tokenize(a))
	setB := toSet(Tokenize(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
