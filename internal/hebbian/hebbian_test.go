package hebbian

import (
	"testing"
	"time"

	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestMemory(t *testing.T, s *store.Store, content string) string {
	t.Helper()
	id, err := s.Add(store.AddParams{
		Content: content, Type: store.TypeEpisodic, Importance: 0.5, Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func TestLinkFormsAtThreshold(t *testing.T) {
	s := setupTestStore(t)
	cfg := config.Default()
	a := addTestMemory(t, s, "I have a cat named Whiskers")
	b := addTestMemory(t, s, "Cats are great pets")

	for i := 0; i < cfg.HebbianThreshold-1; i++ {
		formed, err := RecordCoactivation(s, []string{a, b}, cfg)
		if err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
		if len(formed) != 0 {
			t.Fatalf("link formed early at iteration %d", i)
		}
	}

	formed, err := RecordCoactivation(s, []string{a, b}, cfg)
	if err != nil {
		t.Fatalf("RecordCoactivation: %v", err)
	}
	if len(formed) != 1 {
		t.Fatalf("expected exactly 1 newly formed link at threshold crossing, got %d", len(formed))
	}

	link, err := s.GetLink(a, b)
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if link.Strength != 1.0 {
		t.Fatalf("Strength = %v, want 1.0", link.Strength)
	}

	// Idempotent: calling again does not re-form the link.
	formedAgain, err := RecordCoactivation(s, []string{a, b}, cfg)
	if err != nil {
		t.Fatalf("RecordCoactivation second call: %v", err)
	}
	if len(formedAgain) != 0 {
		t.Fatalf("link re-formed on repeated call")
	}
}

func TestBidirectionality(t *testing.T) {
	s := setupTestStore(t)
	cfg := config.Default()
	a := addTestMemory(t, s, "alpha")
	b := addTestMemory(t, s, "beta")

	for i := 0; i < cfg.HebbianThreshold; i++ {
		if _, err := RecordCoactivation(s, []string{a, b}, cfg); err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
	}

	fwd, err := s.GetLink(a, b)
	if err != nil {
		t.Fatalf("GetLink a->b: %v", err)
	}
	back, err := s.GetLink(b, a)
	if err != nil {
		t.Fatalf("GetLink b->a: %v", err)
	}
	if fwd.Strength != back.Strength {
		t.Fatalf("asymmetric strengths: %v vs %v", fwd.Strength, back.Strength)
	}
}

func TestGraphExpansionThreeMemories(t *testing.T) {
	s := setupTestStore(t)
	cfg := config.Default()
	m1 := addTestMemory(t, s, "I have a cat named Whiskers")
	m2 := addTestMemory(t, s, "Cats are great pets")
	m3 := addTestMemory(t, s, "Dogs are loyal companions")

	for i := 0; i < cfg.HebbianThreshold; i++ {
		if _, err := RecordCoactivation(s, []string{m1, m2, m3}, cfg); err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
	}

	links, err := AllLinks(s)
	if err != nil {
		t.Fatalf("AllLinks: %v", err)
	}
	if len(links) != 6 {
		t.Fatalf("expected 6 bidirectional rows for 3 pairs, got %d", len(links))
	}
	for _, l := range links {
		if l.Strength != 1.0 {
			t.Errorf("link %s->%s strength = %v, want 1.0", l.SourceID, l.TargetID, l.Strength)
		}
	}

	neighbors, err := Neighbors(s, m1, cfg)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors of m1, got %d", len(neighbors))
	}
}

func TestDecayPrunesWeakLinks(t *testing.T) {
	s := setupTestStore(t)
	cfg := config.Default()
	a := addTestMemory(t, s, "one")
	b := addTestMemory(t, s, "two")
	for i := 0; i < cfg.HebbianThreshold; i++ {
		if _, err := RecordCoactivation(s, []string{a, b}, cfg); err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
	}

	// Strength starts at 1.0; decaying repeatedly by 0.95 eventually drops
	// below the 0.1 prune floor.
	var pruned int
	var err error
	for i := 0; i < 200; i++ {
		pruned, err = Decay(s, cfg)
		if err != nil {
			t.Fatalf("Decay: %v", err)
		}
		if pruned > 0 {
			break
		}
	}
	if pruned == 0 {
		t.Fatalf("expected link to be pruned after repeated decay")
	}
	if _, err := s.GetLink(a, b); err == nil {
		t.Fatalf("expected pruned link to be gone")
	}
}

func TestCascadeDeleteRemovesLinks(t *testing.T) {
	s := setupTestStore(t)
	cfg := config.Default()
	a := addTestMemory(t, s, "one")
	b := addTestMemory(t, s, "two")
	for i := 0; i < cfg.HebbianThreshold; i++ {
		if _, err := RecordCoactivation(s, []string{a, b}, cfg); err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
	}

	if err := s.Delete(a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	links, err := AllLinks(s)
	if err != nil {
		t.Fatalf("AllLinks: %v", err)
	}
	for _, l := range links {
		if l.SourceID == a || l.TargetID == a {
			t.Fatalf("cascade delete left a dangling link referencing %s", a)
		}
	}
}

func TestHebbianDisabled(t *testing.T) {
	s := setupTestStore(t)
	cfg := config.Default()
	cfg.HebbianEnabled = false
	a := addTestMemory(t, s, "one")
	b := addTestMemory(t, s, "two")

	for i := 0; i < cfg.HebbianThreshold+5; i++ {
		formed, err := RecordCoactivation(s, []string{a, b}, cfg)
		if err != nil {
			t.Fatalf("RecordCoactivation: %v", err)
		}
		if len(formed) != 0 {
			t.Fatalf("link formed while hebbian disabled")
		}
	}
}
