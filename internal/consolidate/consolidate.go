// Package consolidate implements the periodic sweep that promotes
// reinforced working-layer memories to core, forgets weak ones, and decays
// the Hebbian graph. Grounded on internal/consolidate/consolidate.go's
// Consolidator struct shape (a small struct of tunable knobs plus a single
// Run-style entry point), reimplemented around promote/forget/decay instead
// of LLM-driven episode clustering.
package consolidate

import (
	"math"

	"github.com/vthunder/engram/internal/activation"
	"github.com/vthunder/engram/internal/clock"
	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/hebbian"
	"github.com/vthunder/engram/internal/logging"
	"github.com/vthunder/engram/internal/reinforce"
	"github.com/vthunder/engram/internal/store"
	"github.com/vthunder/engram/internal/tuner"
)

// Consolidator performs a single-sweep consolidation cycle over one store.
type Consolidator struct {
	Store *store.Store
	Cfg   *config.Store
	Clock clock.Clock
	Tuner *tuner.Tuner // optional; metrics are skipped if nil
}

// Run performs one consolidation sweep and returns the number of memories
// promoted to core. days scales forgetting severity: the effective forget
// floor is (min_activation - 2) - ln(1+days), so a longer elapsed period
// tolerates a wider band of low activation before deleting a memory.
func (c *Consolidator) Run(days float64) (nPromoted int, err error) {
	cfg := c.Cfg.Get()
	now := c.Clock.Now()
	forgetFloor := (cfg.MinActivation - 2) - math.Log1p(days)

	working, err := c.Store.WorkingLayerMemories()
	if err != nil {
		return 0, err
	}

	var nForgotten int
	for _, m := range working {
		if m.Reinforcement >= cfg.WorkingToCoreThreshold {
			if err := reinforce.OnPromotion(c.Store, m); err != nil {
				return nPromoted, err
			}
			nPromoted++
			continue
		}

		a := activation.At(m, now, cfg)
		if a < forgetFloor {
			if err := c.Store.Delete(m.ID); err != nil {
				return nPromoted, err
			}
			nForgotten++
		}
	}

	if _, err := hebbian.Decay(c.Store, cfg); err != nil {
		return nPromoted, err
	}

	logging.Info("consolidate", "sweep complete: promoted=%d forgotten=%d forget_floor=%.3f", nPromoted, nForgotten, forgetFloor)

	if c.Tuner != nil {
		c.Tuner.RecordConsolidation(nForgotten)
	}
	return nPromoted, nil
}
