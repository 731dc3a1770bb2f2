package recall

import (
	"errors"
	"testing"
	"time"

	"github.com/vthunder/engram/internal/clock"
	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/engerr"
	"github.com/vthunder/engram/internal/hebbian"
	"github.com/vthunder/engram/internal/store"
)

func setupPipeline(t *testing.T) (*Pipeline, *store.Store, *clock.Manual) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clk := clock.NewManual(time.Now())
	cfgStore := config.NewStore(config.Default())
	return &Pipeline{Store: s, Cfg: cfgStore, Clock: clk}, s, clk
}

func TestRecallEmptyStoreReturnsEmpty(t *testing.T) {
	p, _, _ := setupPipeline(t)
	results, err := p.Recall("anything", 5, false, nil)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestRecallLimitZeroSkipsReinforcement(t *testing.T) {
	p, s, clk := setupPipeline(t)
	id, err := s.Add(store.AddParams{Content: "cats are great", Type: store.TypeFactual, Importance: 0.5, Now: clk.Now()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := p.Recall("cats", 0, false, nil)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results with limit=0, got %d", len(results))
	}

	mem, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mem.AccessCount != 0 {
		t.Fatalf("expected access_count untouched with limit=0, got %d", mem.AccessCount)
	}
}

// TestReinforcementCrossesPromotionThresholdAtTenthRecall recalls a memory
// ten times at default alpha=0.1 and expects reinforcement to reach
// working_to_core_threshold. Recall itself only reinforces; promotion is
// the consolidator's job, so this checks the accumulator crosses the
// threshold at the 10th recall.
func TestReinforcementCrossesPromotionThresholdAtTenthRecall(t *testing.T) {
	p, s, clk := setupPipeline(t)
	id, err := s.Add(store.AddParams{Content: "remember this fact", Type: store.TypeFactual, Importance: 0.5, Now: clk.Now()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	cfg := config.Default()
	for i := 0; i < 9; i++ {
		if _, err := p.Recall("remember this fact", 5, false, nil); err != nil {
			t.Fatalf("Recall iteration %d: %v", i, err)
		}
	}
	mem, _ := s.Get(id)
	if mem.Reinforcement >= cfg.WorkingToCoreThreshold {
		t.Fatalf("reinforcement crossed threshold too early: %v", mem.Reinforcement)
	}

	if _, err := p.Recall("remember this fact", 5, false, nil); err != nil {
		t.Fatalf("Recall 10th: %v", err)
	}
	mem, _ = s.Get(id)
	if mem.Reinforcement < cfg.WorkingToCoreThreshold {
		t.Fatalf("expected reinforcement >= %v after 10 recalls, got %v", cfg.WorkingToCoreThreshold, mem.Reinforcement)
	}
}

// TestGraphExpansionSurfacesHebbianNeighbor checks that a memory linked to a
// direct lexical match via a formed Hebbian link is surfaced by graph
// expansion even when it wouldn't otherwise match the query.
func TestGraphExpansionSurfacesHebbianNeighbor(t *testing.T) {
	p, s, clk := setupPipeline(t)
	cfg := config.Default()

	m1, _ := s.Add(store.AddParams{Content: "I have a cat named Whiskers", Type: store.TypeEpisodic, Importance: 0.5, Now: clk.Now()})
	m3, _ := s.Add(store.AddParams{Content: "Dogs are loyal companions", Type: store.TypeEpisodic, Importance: 0.5, Now: clk.Now()})

	for i := 0; i < cfg.HebbianThreshold; i++ {
		if _, err := hebbian.RecordCoactivation(s, []string{m1, m3}, cfg); err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
	}

	results, err := p.Recall("cat", 5, true, nil)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	found := false
	for _, r := range results {
		if r.ID == m3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected graph-expanded neighbor %s in results %+v", m3, results)
	}
}

// TestHydrateCandidateTreatsMissingIDAsSkippable covers the race where a
// lexical or vector candidate id no longer exists by the time it's
// hydrated (e.g. a concurrent delete): hydrateCandidate must surface
// ErrNotFound rather than a generic failure, so gatherCandidates can drop
// the candidate instead of aborting the whole recall.
func TestHydrateCandidateTreatsMissingIDAsSkippable(t *testing.T) {
	p, _, _ := setupPipeline(t)
	cfg := config.Default()
	seen := make(map[string]*candidate)

	err := p.hydrateCandidate(seen, "mem-does-not-exist", "query", nil, cfg, time.Now())
	if !errors.Is(err, engerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing candidate id, got %v", err)
	}
}

func TestSingleSurvivorRecordsNoCoactivation(t *testing.T) {
	p, s, clk := setupPipeline(t)
	s.Add(store.AddParams{Content: "a lonely memory", Type: store.TypeFactual, Importance: 0.5, Now: clk.Now()})

	if _, err := p.Recall("lonely", 5, false, nil); err != nil {
		t.Fatalf("Recall: %v", err)
	}
	links, err := hebbian.AllLinks(s)
	if err != nil {
		t.Fatalf("AllLinks: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("expected no links recorded for a single surviving candidate, got %d", len(links))
	}
}
