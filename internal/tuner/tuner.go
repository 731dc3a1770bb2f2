package tuner

import (
	"math"

	"github.com/vthunder/engram/internal/clock"
	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/logging"
)

// Tuner observes recall/reward/consolidation outcomes and periodically
// rewrites a config.Store's parameters by closed-loop rule. Fields mirror
// AdaptiveTuner's constructor arguments exactly.
type Tuner struct {
	cfg             *config.Store
	clock           clock.Clock
	adaptationRate  float64
	minSamples      int
	adaptationInterval float64 // seconds

	metrics        Metrics
	lastAdaptation float64 // unix seconds
}

// New constructs a Tuner with the reference defaults (adaptation_rate=0.05,
// min_samples=20, adaptation_interval=3600s).
func New(cfg *config.Store, clk clock.Clock) *Tuner {
	return &Tuner{
		cfg:                cfg,
		clock:              clk,
		adaptationRate:     0.05,
		minSamples:         20,
		adaptationInterval: 3600.0,
		lastAdaptation:     unixSeconds(clk.Now()),
	}
}

// WithAdaptationInterval overrides the default 3600s gate, used by tests
// that want should_adapt to trigger immediately by setting
// adaptation_interval=0.
func (t *Tuner) WithAdaptationInterval(seconds float64) *Tuner {
	t.adaptationInterval = seconds
	return t
}

// RecordRecall logs a completed recall: resultCount is the number of
// results returned (> 0 counts as a "successful" recall), latencySeconds
// is the observed wall time.
func (t *Tuner) RecordRecall(resultCount int, latencySeconds float64) {
	t.metrics.TotalRecalls++
	if resultCount > 0 {
		t.metrics.SuccessfulRecalls++
	}
	t.metrics.TotalRetrievalTime += latencySeconds
	t.metrics.LastUpdated = t.clock.Now()
}

// RecordReward logs reward feedback polarity ("positive"/"negative";
// anything else, including "neutral", is not counted either way).
func (t *Tuner) RecordReward(polarity string) {
	switch polarity {
	case "positive":
		t.metrics.PositiveRewards++
	case "negative":
		t.metrics.NegativeRewards++
	}
	t.metrics.LastUpdated = t.clock.Now()
}

// RecordConsolidation logs a completed consolidation cycle that forgot
// nForgotten memories.
func (t *Tuner) RecordConsolidation(nForgotten int) {
	t.metrics.ConsolidationCycles++
	t.metrics.MemoriesForgotten += nForgotten
	t.metrics.LastUpdated = t.clock.Now()
}

// ShouldAdapt reports whether enough samples and time have passed to run a
// rule pass: (total_recalls >= min_samples OR consolidation_cycles >= 3)
// AND (now - last_adaptation >= adaptation_interval).
func (t *Tuner) ShouldAdapt() bool {
	enoughSamples := t.metrics.TotalRecalls >= t.minSamples || t.metrics.ConsolidationCycles >= 3
	elapsed := unixSeconds(t.clock.Now()) - t.lastAdaptation
	return enoughSamples && elapsed >= t.adaptationInterval
}

// Adapt applies the closed-loop rule table in order against the live
// configuration, returning the set of parameter names that changed. A
// no-op (returns nil) when ShouldAdapt is false.
func (t *Tuner) Adapt() map[string]float64 {
	if !t.ShouldAdapt() {
		return nil
	}
	changes := make(map[string]float64)
	r := t.adaptationRate

	t.cfg.Apply(func(c *config.Config) {
		hitRate := t.metrics.HitRate()
		switch {
		case hitRate < 0.6:
			next := c.MinActivation - math.Abs(c.MinActivation*r)
			next = math.Max(next, -15.0)
			if next != c.MinActivation {
				changes["min_activation"] = next
				c.MinActivation = next
			}
		case hitRate > 0.9:
			next := c.MinActivation + math.Abs(c.MinActivation*r/2)
			next = math.Min(next, -5.0)
			if next != c.MinActivation {
				changes["min_activation"] = next
				c.MinActivation = next
			}
		}

		rewardRatio := t.metrics.RewardRatio()
		feedbackCount := t.metrics.PositiveRewards + t.metrics.NegativeRewards
		if rewardRatio < 0.4 && feedbackCount > 5 {
			next := c.ContextWeight * (1 + r)
			next = math.Min(next, 3.0)
			if next != c.ContextWeight {
				changes["context_weight"] = next
				c.ContextWeight = next
			}
		}

		forgetRate := t.metrics.ForgetRate()
		switch {
		case forgetRate > 10.0:
			nextMu1 := math.Max(c.Mu1*(1-r), 0.01)
			nextMu2 := math.Max(c.Mu2*(1-r), 0.0001)
			if nextMu1 != c.Mu1 {
				changes["mu1"] = nextMu1
				c.Mu1 = nextMu1
			}
			if nextMu2 != c.Mu2 {
				changes["mu2"] = nextMu2
				c.Mu2 = nextMu2
			}
		case forgetRate < 2.0 && t.metrics.ConsolidationCycles >= 5:
			nextMu1 := math.Min(c.Mu1*(1+r), 0.5)
			nextMu2 := math.Min(c.Mu2*(1+r), 0.02)
			if nextMu1 != c.Mu1 {
				changes["mu1"] = nextMu1
				c.Mu1 = nextMu1
			}
			if nextMu2 != c.Mu2 {
				changes["mu2"] = nextMu2
				c.Mu2 = nextMu2
			}
		}

		if rewardRatio > 0.7 && t.metrics.PositiveRewards >= 5 {
			next := c.Alpha * (1 + r/2)
			next = math.Min(next, 0.3)
			if next != c.Alpha {
				changes["alpha"] = next
				c.Alpha = next
			}
		}
	})

	t.lastAdaptation = unixSeconds(t.clock.Now())
	if len(changes) > 0 {
		logging.Info("tuner", "adapted %d parameter(s): %v", len(changes), changes)
	}
	return changes
}

// Snapshot returns a copy of the current accumulated metrics, unrounded,
// for display/stats purposes.
func (t *Tuner) Snapshot() Metrics {
	return t.metrics
}

// Reset clears accumulated metrics, useful after a major config change.
func (t *Tuner) Reset() {
	t.metrics = Metrics{LastUpdated: t.clock.Now()}
}

func unixSeconds(tm interface{ Unix() int64 }) float64 {
	return float64(tm.Unix())
}
