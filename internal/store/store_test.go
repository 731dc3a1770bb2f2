package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vthunder/engram/internal/engerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Truncate(time.Second)

	id, err := s.Add(AddParams{
		Content:    "cats are great pets",
		Type:       TypeFactual,
		Importance: 0.6,
		Embedding:  []float64{0.1, 0.2, 0.3},
		Now:        now,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	want := &Memory{
		ID:             id,
		Content:        "cats are great pets",
		Type:           TypeFactual,
		Importance:     0.6,
		Layer:          LayerWorking,
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    0,
		Reinforcement:  0,
		Embedding:      []float64{0.1, 0.2, 0.3},
	}

	opts := []cmp.Option{
		cmpopts.IgnoreFields(Memory{}, "ShortID"),
		cmpopts.EquateApproxTime(time.Second),
		cmpopts.EquateApprox(0, 1e-9),
	}
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("Get result mismatch (-want +got):\n%s", diff)
	}
	if got.ShortID == "" {
		t.Error("expected a non-empty short id")
	}
}

func TestAddRejectsInvalidImportance(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Add(AddParams{Content: "x", Type: TypeFactual, Importance: 1.5, Now: time.Now()})
	if !errors.Is(err, engerr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAddRejectsUnknownType(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Add(AddParams{Content: "x", Type: MemoryType("bogus"), Importance: 0.5, Now: time.Now()})
	if !errors.Is(err, engerr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAddRejectsDanglingContradicts(t *testing.T) {
	s := openTestStore(t)
	missing := "mem-does-not-exist"
	_, err := s.Add(AddParams{Content: "x", Type: TypeFactual, Importance: 0.5, Contradicts: &missing, Now: time.Now()})
	if !errors.Is(err, engerr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("mem-nope")
	if !errors.Is(err, engerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteNullifiesContradictsReference(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	id1, _ := s.Add(AddParams{Content: "original claim", Type: TypeFactual, Importance: 0.5, Now: now})
	id2, _ := s.Add(AddParams{Content: "disputing claim", Type: TypeFactual, Importance: 0.5, Contradicts: &id1, Now: now})

	if err := s.Delete(id1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	mem, err := s.Get(id2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mem.Contradicts != nil {
		t.Fatalf("expected contradicts to be nulled out, got %v", *mem.Contradicts)
	}
}

func TestUpdateActivationFieldsBatchCommitsAllRows(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	id1, _ := s.Add(AddParams{Content: "a", Type: TypeFactual, Importance: 0.5, Now: now})
	id2, _ := s.Add(AddParams{Content: "b", Type: TypeFactual, Importance: 0.5, Now: now})

	later := now.Add(time.Hour)
	err := s.UpdateActivationFieldsBatch([]ActivationUpdate{
		{ID: id1, LastAccessedAt: later, AccessCount: 1, Reinforcement: 0.1},
		{ID: id2, LastAccessedAt: later, AccessCount: 2, Reinforcement: 0.2},
	})
	if err != nil {
		t.Fatalf("UpdateActivationFieldsBatch: %v", err)
	}

	m1, _ := s.Get(id1)
	m2, _ := s.Get(id2)
	if m1.AccessCount != 1 || m2.AccessCount != 2 {
		t.Fatalf("unexpected access counts: m1=%d m2=%d", m1.AccessCount, m2.AccessCount)
	}
}

func TestUpdateActivationFieldsBatchRollsBackOnUnknownID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	id1, _ := s.Add(AddParams{Content: "a", Type: TypeFactual, Importance: 0.5, Now: now})

	err := s.UpdateActivationFieldsBatch([]ActivationUpdate{
		{ID: id1, LastAccessedAt: now.Add(time.Hour), AccessCount: 9, Reinforcement: 0.9},
		{ID: "mem-does-not-exist", LastAccessedAt: now, AccessCount: 1, Reinforcement: 0.1},
	})
	if !errors.Is(err, engerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m1, _ := s.Get(id1)
	if m1.AccessCount != 0 {
		t.Fatalf("expected id1's update to roll back alongside the failing row, got access_count=%d", m1.AccessCount)
	}
}

func TestUpdateActivationFieldsPersists(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	id, _ := s.Add(AddParams{Content: "x", Type: TypeFactual, Importance: 0.5, Now: now})

	later := now.Add(time.Hour)
	if err := s.UpdateActivationFields(id, later, 3, 0.2); err != nil {
		t.Fatalf("UpdateActivationFields: %v", err)
	}

	mem, _ := s.Get(id)
	if mem.AccessCount != 3 || mem.Reinforcement != 0.2 {
		t.Fatalf("unexpected fields after update: %+v", mem)
	}
	if !mem.LastAccessedAt.Equal(later) {
		t.Fatalf("expected last_accessed_at %v, got %v", later, mem.LastAccessedAt)
	}
}

func TestPromoteToCoreMovesLayer(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Add(AddParams{Content: "x", Type: TypeFactual, Importance: 0.5, Now: time.Now()})

	if err := s.PromoteToCore(id); err != nil {
		t.Fatalf("PromoteToCore: %v", err)
	}
	mem, _ := s.Get(id)
	if mem.Layer != LayerCore {
		t.Fatalf("expected layer core, got %v", mem.Layer)
	}

	working, core, err := s.CountByLayer()
	if err != nil {
		t.Fatalf("CountByLayer: %v", err)
	}
	if working != 0 || core != 1 {
		t.Fatalf("expected working=0 core=1, got working=%d core=%d", working, core)
	}
}

func TestWorkingLayerMemoriesExcludesCore(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	id1, _ := s.Add(AddParams{Content: "stays working", Type: TypeFactual, Importance: 0.5, Now: now})
	id2, _ := s.Add(AddParams{Content: "gets promoted", Type: TypeFactual, Importance: 0.5, Now: now})
	if err := s.PromoteToCore(id2); err != nil {
		t.Fatalf("PromoteToCore: %v", err)
	}

	working, err := s.WorkingLayerMemories()
	if err != nil {
		t.Fatalf("WorkingLayerMemories: %v", err)
	}
	if len(working) != 1 || working[0].ID != id1 {
		t.Fatalf("expected only %s in working layer, got %+v", id1, working)
	}
}

func TestLexicalCandidatesFindsKeywordMatch(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	id, _ := s.Add(AddParams{Content: "the quick brown fox jumps", Type: TypeFactual, Importance: 0.5, Now: now})
	s.Add(AddParams{Content: "an unrelated sentence about weather", Type: TypeFactual, Importance: 0.5, Now: now})

	candidates, err := s.LexicalCandidates([]string{"fox"}, 5)
	if err != nil {
		t.Fatalf("LexicalCandidates: %v", err)
	}
	found := false
	for _, c := range candidates {
		if c.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s among lexical candidates %+v", id, candidates)
	}
}
