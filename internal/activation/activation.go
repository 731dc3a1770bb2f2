// Package activation computes the log-domain activation score that governs
// how retrievable a memory is: pure functions over a store.Memory snapshot
// and a point in time, no I/O. Mirrors internal/graph/types.go's pattern of
// hanging small, pure helpers (Recency, IsLabile) directly off the domain
// struct rather than burying the math in the retrieval pipeline.
package activation

import (
	"math"
	"time"

	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/store"
)

// ConfidenceLabel is the bucketed qualitative view of an activation value
// returned to callers.
type ConfidenceLabel string

const (
	Certain   ConfidenceLabel = "certain"
	Likely    ConfidenceLabel = "likely"
	Uncertain ConfidenceLabel = "uncertain"
	Faint     ConfidenceLabel = "faint"
)

// OfDelta computes a(t) directly from Δ_hours, exposed separately from At
// so tests can pin the formula without going through a store.Memory.
func OfDelta(importance float64, accessCount int, reinforcement, deltaHours float64, cfg *config.Config) float64 {
	if deltaHours < 0 {
		deltaHours = 0
	}
	base := math.Log1p(importance) + math.Log1p(float64(accessCount)) + reinforcement
	decay := cfg.Mu1*deltaHours + cfg.Mu2*deltaHours*math.Log1p(deltaHours)
	return base - decay
}

// At computes a(t) for m at wall-clock time now.
func At(m *store.Memory, now time.Time, cfg *config.Config) float64 {
	deltaHours := now.Sub(m.LastAccessedAt).Hours()
	return OfDelta(m.Importance, m.AccessCount, m.Reinforcement, deltaHours, cfg)
}

// Label buckets an activation value into a qualitative confidence tier.
func Label(a float64) ConfidenceLabel {
	switch {
	case a >= 0:
		return Certain
	case a >= -2:
		return Likely
	case a >= -5:
		return Uncertain
	default:
		return Faint
	}
}

// Confidence maps activation to a numeric [0,1] score via a clamped
// sigmoid, treated as synonymous with activation unless a caller needs a
// probability-like scale instead of the raw log-domain value.
func Confidence(a float64) float64 {
	c := 1.0 / (1.0 + math.Exp(-a))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
