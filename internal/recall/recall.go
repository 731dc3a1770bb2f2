// Package recall implements the candidate generation → scoring →
// threshold → graph-expansion → ranking → contradiction penalty →
// reinforcement → co-activation → metrics pipeline behind a single Recall
// call. Grounded on internal/graph/activation.go's
// Retrieve/RetrieveWithContext (dual-trigger seeding into a funnel-style
// shortlist).
package recall

import (
	"errors"
	"sort"
	"time"

	"github.com/vthunder/engram/internal/activation"
	"github.com/vthunder/engram/internal/clock"
	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/engerr"
	"github.com/vthunder/engram/internal/hebbian"
	"github.com/vthunder/engram/internal/lexical"
	"github.com/vthunder/engram/internal/reinforce"
	"github.com/vthunder/engram/internal/store"
	"github.com/vthunder/engram/internal/tuner"
)

// Result is the per-memory return value of Recall.
type Result struct {
	ID              string
	Content         string
	Type            store.MemoryType
	Activation      float64
	ConfidenceLabel activation.ConfidenceLabel
	Confidence      float64
}

// highActivationThreshold gates the "extant high-activation memory"
// contradiction check; chosen to coincide with the "certain" confidence
// bucket (a >= 0).
const highActivationThreshold = 0.0

type candidate struct {
	mem       *store.Memory
	semantic  float64
	score     float64
	fromGraph bool
}

// Pipeline wires the store, config, and clock a Recall call needs. One
// Pipeline is created per engine instance and reused across calls.
type Pipeline struct {
	Store *store.Store
	Cfg   *config.Store
	Clock clock.Clock
	Tuner *tuner.Tuner
}

// Recall runs the full candidate generation, scoring, and reinforcement
// pipeline for query. queryEmbedding may be nil when no embedder is
// configured or embedding the query failed; in that case candidate
// generation falls back to lexical-only and scoring falls back to Jaccard
// similarity throughout.
func (p *Pipeline) Recall(query string, limit int, graphExpand bool, queryEmbedding []float64) ([]Result, error) {
	start := p.Clock.Now()
	cfg := p.Cfg.Get()
	now := p.Clock.Now()

	if limit == 0 {
		p.recordMetrics(0, start)
		return nil, nil
	}

	candidates, err := p.gatherCandidates(query, limit, queryEmbedding, cfg, now)
	if err != nil {
		return nil, err
	}

	if graphExpand || cfg.GraphExpandByDefault {
		candidates = p.expandGraph(candidates, cfg, now)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := p.buildResults(candidates, cfg, now)

	if err := p.reinforceAndRecordCoactivation(results, cfg, now); err != nil {
		return results, err
	}

	p.recordMetrics(len(results), start)
	return results, nil
}

// gatherCandidates implements steps 1-3: union lexical+vector candidates,
// score, filter by min_activation.
func (p *Pipeline) gatherCandidates(query string, limit int, queryEmbedding []float64, cfg *config.Config, now time.Time) ([]candidate, error) {
	topK := 4 * limit
	seen := make(map[string]*candidate)

	keywords := lexical.Keywords(query)
	if len(keywords) > 0 {
		lex, err := p.Store.LexicalCandidates(keywords, topK)
		if err != nil {
			return nil, err
		}
		for _, c := range lex {
			if err := p.hydrateCandidate(seen, c.ID, query, queryEmbedding, cfg, now); err != nil {
				if errors.Is(err, engerr.ErrNotFound) {
					continue // lexical hit raced with a delete; drop the candidate
				}
				return nil, err
			}
		}
	}

	if len(queryEmbedding) > 0 {
		vec, err := p.Store.VectorCandidates(queryEmbedding, topK)
		if err != nil {
			return nil, err
		}
		for _, c := range vec {
			if err := p.hydrateCandidate(seen, c.ID, query, queryEmbedding, cfg, now); err != nil {
				if errors.Is(err, engerr.ErrNotFound) {
					continue // vector hit raced with a delete; drop the candidate
				}
				return nil, err
			}
		}
	}

	out := make([]candidate, 0, len(seen))
	for _, c := range seen {
		if c.mem == nil {
			continue
		}
		a := activation.At(c.mem, now, cfg)
		if a < cfg.MinActivation {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// hydrateCandidate fetches the memory for id (once) and computes its
// semantic similarity and score.
func (p *Pipeline) hydrateCandidate(seen map[string]*candidate, id, query string, queryEmbedding []float64, cfg *config.Config, now time.Time) error {
	c, ok := seen[id]
	if ok && c.mem != nil {
		return nil // already hydrated from the other candidate source
	}
	mem, err := p.Store.Get(id)
	if err != nil {
		return err
	}

	semantic := lexical.JaccardSimilarity(query, mem.Content)
	if len(queryEmbedding) > 0 && len(mem.Embedding) > 0 {
		semantic = store.CosineSimilarity(queryEmbedding, mem.Embedding)
	}

	a := activation.At(mem, now, cfg)
	seen[id] = &candidate{
		mem:      mem,
		semantic: semantic,
		score:    cfg.ContextWeight*semantic + a,
	}
	return nil
}

// expandGraph implements step 4: single-hop Hebbian neighbor expansion with
// a damped score, deduplicated against the surviving set.
func (p *Pipeline) expandGraph(candidates []candidate, cfg *config.Config, now time.Time) []candidate {
	if !cfg.HebbianEnabled {
		return candidates
	}
	present := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		present[c.mem.ID] = true
	}

	out := append([]candidate{}, candidates...)
	for _, source := range candidates {
		neighbors, err := hebbian.Neighbors(p.Store, source.mem.ID, cfg)
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			if present[n.ID] {
				continue
			}
			neighborMem, err := p.Store.Get(n.ID)
			if err != nil {
				continue
			}
			aNeighbor := activation.At(neighborMem, now, cfg)
			out = append(out, candidate{
				mem:       neighborMem,
				semantic:  source.semantic,
				score:     0.7*n.Strength*source.score + aNeighbor,
				fromGraph: true,
			})
			present[n.ID] = true
		}
	}
	return out
}

// buildResults implements step 6: compute activation/label/confidence for
// each surviving candidate, then halve confidence and downgrade the label
// one bucket for contradictions pointing at a returned or high-activation
// memory.
func (p *Pipeline) buildResults(candidates []candidate, cfg *config.Config, now time.Time) []Result {
	returned := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		returned[c.mem.ID] = true
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		a := activation.At(c.mem, now, cfg)
		label := activation.Label(a)
		conf := activation.Confidence(a)

		if c.mem.Contradicts != nil {
			if returned[*c.mem.Contradicts] || p.contradictsHighActivation(*c.mem.Contradicts, cfg, now) {
				conf *= 0.5
				label = downgrade(label)
			}
		}

		results = append(results, Result{
			ID:              c.mem.ID,
			Content:         c.mem.Content,
			Type:            c.mem.Type,
			Activation:      a,
			ConfidenceLabel: label,
			Confidence:      conf,
		})
	}
	return results
}

func (p *Pipeline) contradictsHighActivation(targetID string, cfg *config.Config, now time.Time) bool {
	target, err := p.Store.Get(targetID)
	if err != nil {
		return false
	}
	return activation.At(target, now, cfg) >= highActivationThreshold
}

func downgrade(label activation.ConfidenceLabel) activation.ConfidenceLabel {
	switch label {
	case activation.Certain:
		return activation.Likely
	case activation.Likely:
		return activation.Uncertain
	case activation.Uncertain:
		return activation.Faint
	default:
		return activation.Faint
	}
}

// reinforceAndRecordCoactivation bumps access fields for every returned id,
// committing them together in one transaction so a mid-loop storage fault
// cannot leave some ids reinforced and others not, then records
// co-activation across all unordered pairs (skipped entirely when only one
// id was returned).
func (p *Pipeline) reinforceAndRecordCoactivation(results []Result, cfg *config.Config, now time.Time) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]string, 0, len(results))
	updates := make([]store.ActivationUpdate, 0, len(results))
	for _, r := range results {
		mem, err := p.Store.Get(r.ID)
		if err != nil {
			continue
		}
		updates = append(updates, reinforce.RecallHitUpdate(mem, now, cfg))
		ids = append(ids, r.ID)
	}

	if err := p.Store.UpdateActivationFieldsBatch(updates); err != nil {
		return err
	}

	if cfg.HebbianEnabled && len(ids) > 1 {
		if _, err := hebbian.RecordCoactivation(p.Store, ids, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) recordMetrics(resultCount int, start time.Time) {
	if p.Tuner == nil {
		return
	}
	latency := p.Clock.Now().Sub(start).Seconds()
	p.Tuner.RecordRecall(resultCount, latency)
}
