// Package hebbian implements a co-activation graph: counters that, on
// crossing a configured threshold, materialize into persistent bidirectional
// links used to expand recall. Grounded directly on
// _examples/original_source/tests/test_hebbian.py (threshold-crossing,
// idempotent link creation, neighbor filtering, decay/prune, cascade), but
// the counters live in internal/store's hebbian_links table rather than an
// in-process map, so they persist across restarts and survive concurrent
// writers.
package hebbian

import (
	"fmt"

	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/engerr"
	"github.com/vthunder/engram/internal/store"
)

// RecordCoactivation increments the co-activation counter for every
// unordered pair among ids (deduplicated, self-pairs skipped) and
// materializes a link at strength 1.0 for any pair whose counter just
// crossed cfg.HebbianThreshold. Returns the pairs that newly formed a link
// this call, matching test_link_forms_at_threshold's "new_links count==1
// exactly at crossing" behavior.
func RecordCoactivation(s *store.Store, ids []string, cfg *config.Config) ([][2]string, error) {
	if !cfg.HebbianEnabled {
		return nil, nil
	}
	unique := dedupe(ids)
	if len(unique) < 2 {
		return nil, nil
	}

	var formed [][2]string
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			a, b := unique[i], unique[j]
			count, err := s.IncrementCoactivationPair(a, b)
			if err != nil {
				return formed, err
			}
			if count == cfg.HebbianThreshold {
				if err := s.CreateLinkPair(a, b, 1.0); err != nil {
					return formed, err
				}
				formed = append(formed, [2]string{a, b})
			}
		}
	}
	return formed, nil
}

// Neighbors returns id's Hebbian-linked neighbors with strength at or above
// the configured prune floor, descending by strength.
func Neighbors(s *store.Store, id string, cfg *config.Config) ([]store.Neighbor, error) {
	return s.Neighbors(id, cfg.HebbianPruneFloor)
}

// Strengthen boosts the link between i and j, clamped at cfg.HebbianCap.
// No-op (returns ErrNotFound) if no link has formed between the pair yet.
func Strengthen(s *store.Store, i, j string, boost float64, cfg *config.Config) error {
	link, err := s.GetLink(i, j)
	if err != nil {
		return err
	}
	if link.Strength == 0 {
		return fmt.Errorf("%w: no link formed between %s and %s", engerr.ErrNotFound, i, j)
	}
	next := link.Strength + boost
	if next > cfg.HebbianCap {
		next = cfg.HebbianCap
	}
	return s.UpdateLinkStrength(i, j, next)
}

// Decay multiplies every formed link's strength by cfg.HebbianDecay and
// prunes any link that falls below cfg.HebbianPruneFloor. Returns the
// number of links pruned.
func Decay(s *store.Store, cfg *config.Config) (pruned int, err error) {
	return s.DecayLinks(cfg.HebbianDecay, cfg.HebbianPruneFloor)
}

// AllLinks returns every formed link in the graph.
func AllLinks(s *store.Store) ([]store.Link, error) {
	return s.AllFormedLinks()
}

// Stats reports the total number of formed links and their mean strength.
func Stats(s *store.Store) (formedLinks int, avgStrength float64, err error) {
	return s.CoactivationStats()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
