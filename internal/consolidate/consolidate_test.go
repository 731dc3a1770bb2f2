package consolidate

import (
	"testing"
	"time"

	"github.com/vthunder/engram/internal/clock"
	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/store"
)

func setupConsolidator(t *testing.T) (*Consolidator, *store.Store, *clock.Manual) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clk := clock.NewManual(time.Now())
	return &Consolidator{Store: s, Cfg: config.NewStore(config.Default()), Clock: clk}, s, clk
}

// TestForgettingWeakMemory checks that a low-importance memory with no
// reinforcement, 72 hours stale, is forgotten by a consolidate(days=1.0)
// sweep.
func TestForgettingWeakMemory(t *testing.T) {
	c, s, clk := setupConsolidator(t)
	id, err := s.Add(store.AddParams{Content: "trivial aside", Type: store.TypeFactual, Importance: 0.05, Now: clk.Now()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	clk.Advance(72 * time.Hour)
	if _, err := c.Run(1.0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := s.Get(id); err == nil {
		t.Fatalf("expected memory to be forgotten")
	}
}

func TestPromotionResetsReinforcement(t *testing.T) {
	c, s, clk := setupConsolidator(t)
	id, err := s.Add(store.AddParams{Content: "important fact", Type: store.TypeFactual, Importance: 0.9, Now: clk.Now()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.UpdateActivationFields(id, clk.Now(), 5, 1.5); err != nil {
		t.Fatalf("UpdateActivationFields: %v", err)
	}

	nPromoted, err := c.Run(1.0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if nPromoted != 1 {
		t.Fatalf("nPromoted = %d, want 1", nPromoted)
	}

	mem, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mem.Layer != store.LayerCore {
		t.Fatalf("layer = %v, want core", mem.Layer)
	}
	if mem.Reinforcement != 0 {
		t.Fatalf("reinforcement = %v, want 0 after promotion", mem.Reinforcement)
	}
}

func TestConsolidationIsIdempotentWithoutInterveningActivity(t *testing.T) {
	c, s, clk := setupConsolidator(t)
	if _, err := s.Add(store.AddParams{Content: "steady state", Type: store.TypeFactual, Importance: 0.6, Now: clk.Now()}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n1, err := c.Run(1.0)
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	n2, err := c.Run(1.0)
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("second immediate consolidate promoted %d, want 0", n2)
	}
	_ = n1
}
