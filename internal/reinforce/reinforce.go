// Package reinforce implements the four activation-mutation paths over a
// store.Store: recall hits, positive and negative reward, and promotion.
// Recall hits and positive reward are the only paths that bump activation
// upward; negative reward lowers reinforcement (floored at 0), and passage
// of time lowers activation through internal/activation's decay. Grounded
// on internal/graph/activation.go's BoostActivation / UpdateTraceActivation
// mutation style.
package reinforce

import (
	"math"
	"time"

	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/store"
)

// OnRecallHit applies the on-recall mutation to m at time now: bumps
// last_accessed_at, increments access_count, and adds alpha to
// reinforcement.
func OnRecallHit(s *store.Store, m *store.Memory, now time.Time, cfg *config.Config) error {
	u := RecallHitUpdate(m, now, cfg)
	return s.UpdateActivationFields(u.ID, u.LastAccessedAt, u.AccessCount, u.Reinforcement)
}

// RecallHitUpdate applies the on-recall mutation to m in place and returns
// the corresponding store.ActivationUpdate without writing it, so a caller
// reinforcing several memories from one recall can batch them into a single
// store.UpdateActivationFieldsBatch transaction instead of one write per id.
func RecallHitUpdate(m *store.Memory, now time.Time, cfg *config.Config) store.ActivationUpdate {
	m.LastAccessedAt = now
	m.AccessCount++
	// Rounded to 1e-9 so repeated alpha steps land exactly on the values
	// they sum to: ten plain += 0.1 steps give 0.9999999999999999, which
	// would miss a working_to_core_threshold of 1.0.
	m.Reinforcement = math.Round((m.Reinforcement+cfg.Alpha)*1e9) / 1e9
	return store.ActivationUpdate{
		ID:             m.ID,
		LastAccessedAt: m.LastAccessedAt,
		AccessCount:    m.AccessCount,
		Reinforcement:  m.Reinforcement,
	}
}

// OnPositiveReward adds an additional 2*alpha on top of whatever
// reinforcement m currently carries.
func OnPositiveReward(s *store.Store, m *store.Memory, cfg *config.Config) error {
	m.Reinforcement += 2 * cfg.Alpha
	return s.UpdateActivationFields(m.ID, m.LastAccessedAt, m.AccessCount, m.Reinforcement)
}

// OnNegativeReward subtracts alpha from reinforcement, floored at 0.
func OnNegativeReward(s *store.Store, m *store.Memory, cfg *config.Config) error {
	m.Reinforcement -= cfg.Alpha
	if m.Reinforcement < 0 {
		m.Reinforcement = 0
	}
	return s.UpdateActivationFields(m.ID, m.LastAccessedAt, m.AccessCount, m.Reinforcement)
}

// OnPromotion resets reinforcement to 0, absorbing it into the stable-layer
// score, and transitions the memory's layer to core. Promotion is one-way:
// a core memory never reverts to working.
func OnPromotion(s *store.Store, m *store.Memory) error {
	if err := s.PromoteToCore(m.ID); err != nil {
		return err
	}
	m.Layer = store.LayerCore
	m.Reinforcement = 0
	return s.UpdateActivationFields(m.ID, m.LastAccessedAt, m.AccessCount, m.Reinforcement)
}
