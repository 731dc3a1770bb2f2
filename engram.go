// Package engram is the public facade over the engine: a single embedded
// long-term memory store with activation decay, reinforcement, Hebbian
// association, consolidation, and adaptive parameter tuning. Grounded on
// try_engram.py's usage pattern (add → recall → reward → recall again →
// stats → consolidate) and the Memory class it exercises.
package engram

import (
	"fmt"
	"sync"

	"github.com/vthunder/engram/internal/activation"
	"github.com/vthunder/engram/internal/clock"
	"github.com/vthunder/engram/internal/config"
	"github.com/vthunder/engram/internal/consolidate"
	"github.com/vthunder/engram/internal/engerr"
	"github.com/vthunder/engram/internal/filter"
	"github.com/vthunder/engram/internal/hebbian"
	"github.com/vthunder/engram/internal/logging"
	"github.com/vthunder/engram/internal/recall"
	"github.com/vthunder/engram/internal/reinforce"
	"github.com/vthunder/engram/internal/store"
	"github.com/vthunder/engram/internal/tuner"
)

// Re-export the error taxonomy so callers can errors.Is against this
// package alone rather than reaching into internal/engerr.
var (
	ErrNotFound           = engerr.ErrNotFound
	ErrInvalidArgument    = engerr.ErrInvalidArgument
	ErrConflict           = engerr.ErrConflict
	ErrUnavailable        = engerr.ErrUnavailable
	ErrConfigurationError = engerr.ErrConfigurationError
)

// MemoryType is re-exported from internal/store so callers never import
// the internal package directly.
type MemoryType = store.MemoryType

const (
	TypeEpisodic   = store.TypeEpisodic
	TypeFactual    = store.TypeFactual
	TypeProcedural = store.TypeProcedural
	TypeRelational = store.TypeRelational
	TypeOpinion    = store.TypeOpinion
)

// Result is one recalled memory.
type Result = recall.Result

// Link is one formed Hebbian association.
type Link = store.Link

// Embedder turns text into a fixed-dimension vector for semantic recall.
// Optional: when nil, candidate generation is lexical-only and semantic
// similarity falls back to token Jaccard.
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// PolarityClassifier turns free text into a reward polarity. Optional:
// when nil, Reward requires callers to pass "positive"/"negative"/"neutral"
// directly instead of free text.
type PolarityClassifier interface {
	Classify(text string) (filter.Polarity, error)
}

// Options configures a new Engine.
type Options struct {
	// DBPath is the SQLite file path, or ":memory:" for an ephemeral store.
	DBPath string
	// ConfigPath, if set, loads initial parameters from YAML and enables
	// hot-reload: edits to the file take effect without restarting.
	ConfigPath string
	// Embedder is optional; see the Embedder interface doc.
	Embedder Embedder
	// Polarity is optional; see the PolarityClassifier interface doc.
	Polarity PolarityClassifier
	// Clock overrides the wall clock, for deterministic tests.
	Clock clock.Clock
}

// Engine is one running instance of the memory engine: storage, the
// recall/consolidate/reinforce pipelines, and the adaptive tuner, all
// wired to a shared configuration store.
type Engine struct {
	store   *store.Store
	cfg     *config.Store
	clk     clock.Clock
	tuner   *tuner.Tuner
	watcher *config.Watcher

	recallPipeline *recall.Pipeline
	consolidator   *consolidate.Consolidator

	embedder Embedder
	polarity PolarityClassifier

	mu            sync.Mutex
	lastRecallIDs []string
}

// New opens or creates the store at opts.DBPath and wires up the engine's
// components. Close must be called when the engine is no longer needed.
func New(opts Options) (*Engine, error) {
	s, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		cfg = loaded
	}
	cfgStore := config.NewStore(cfg)

	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	tn := tuner.New(cfgStore, clk)

	e := &Engine{
		store:    s,
		cfg:      cfgStore,
		clk:      clk,
		tuner:    tn,
		embedder: opts.Embedder,
		polarity: opts.Polarity,
		recallPipeline: &recall.Pipeline{
			Store: s,
			Cfg:   cfgStore,
			Clock: clk,
			Tuner: tn,
		},
		consolidator: &consolidate.Consolidator{
			Store: s,
			Cfg:   cfgStore,
			Clock: clk,
			Tuner: tn,
		},
	}

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, cfgStore)
		if err != nil {
			logging.Warn("engram", "config hot-reload disabled: %v", err)
		} else {
			w.Start()
			e.watcher = w
		}
	}

	logging.Info("engram", "engine opened at %s", opts.DBPath)
	return e, nil
}

// Add persists a new memory at the working layer and returns its id.
// contradicts, if non-nil, names an existing memory this one disputes;
// recall halves this memory's confidence and downgrades its label one
// bucket when the disputed memory is returned alongside it or currently has
// activation >= 0. The disputed memory itself is not penalized.
func (e *Engine) Add(content string, typ MemoryType, importance float64, contradicts *string) (string, error) {
	params := store.AddParams{
		Content:     content,
		Type:        typ,
		Importance:  importance,
		Contradicts: contradicts,
		Now:         e.clk.Now(),
	}
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(content); err != nil {
			logging.Warn("engram", "embed on add: %v", err)
		} else {
			params.Embedding = vec
		}
	}
	return e.store.Add(params)
}

// Recall runs the candidate generation → scoring → threshold → graph
// expansion → ranking → contradiction penalty → reinforcement pipeline for
// query, returning up to limit results ordered by score. Every returned id
// becomes the implicit target set for a subsequent Reward call that omits
// targetIDs.
func (e *Engine) Recall(query string, limit int, graphExpand bool) ([]Result, error) {
	var queryEmbedding []float64
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(query); err != nil {
			logging.Warn("engram", "embed on recall: %v", err)
		} else {
			queryEmbedding = vec
		}
	}

	results, err := e.recallPipeline.Recall(query, limit, graphExpand, queryEmbedding)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	e.lastRecallIDs = ids
	e.mu.Unlock()

	return results, nil
}

// Reward applies positive or negative reinforcement to targetIDs, or to the
// ids returned by the most recent Recall call if targetIDs is empty.
// textOrPolarity may be "positive", "negative", "neutral", or free text —
// free text requires a PolarityClassifier to have been supplied in Options.
func (e *Engine) Reward(textOrPolarity string, targetIDs ...string) error {
	polarity, err := e.resolvePolarity(textOrPolarity)
	if err != nil {
		return err
	}

	ids := targetIDs
	if len(ids) == 0 {
		e.mu.Lock()
		ids = append([]string{}, e.lastRecallIDs...)
		e.mu.Unlock()
	}

	cfg := e.cfg.Get()
	for _, id := range ids {
		mem, err := e.store.Get(id)
		if err != nil {
			return err
		}
		switch polarity {
		case filter.Positive:
			err = reinforce.OnPositiveReward(e.store, mem, cfg)
		case filter.Negative:
			err = reinforce.OnNegativeReward(e.store, mem, cfg)
		default:
			continue // neutral: no mutation
		}
		if err != nil {
			return err
		}
	}

	if e.tuner != nil {
		e.tuner.RecordReward(string(polarity))
	}
	return nil
}

func (e *Engine) resolvePolarity(textOrPolarity string) (filter.Polarity, error) {
	switch filter.Polarity(textOrPolarity) {
	case filter.Positive, filter.Negative, filter.Neutral:
		return filter.Polarity(textOrPolarity), nil
	}
	if e.polarity == nil {
		return "", fmt.Errorf("%w: no polarity classifier configured for free text reward", engerr.ErrInvalidArgument)
	}
	return e.polarity.Classify(textOrPolarity)
}

// Consolidate runs one consolidation sweep: promotes reinforced
// working-layer memories to core, forgets sufficiently weak ones, and
// decays the Hebbian graph. days scales forgetting severity; the default
// of 1.0 matches one simulated day of inactivity.
func (e *Engine) Consolidate(days float64) (nPromoted int, err error) {
	if days <= 0 {
		days = 1.0
	}
	return e.consolidator.Run(days)
}

// Stats reports memory counts per layer and the adaptive tuner's current
// metric snapshot.
type Stats struct {
	TotalMemories int
	WorkingCount  int
	CoreCount     int
	Metrics       tuner.Metrics
}

// Stats returns the engine's current layer counts and tuner metrics.
func (e *Engine) Stats() (Stats, error) {
	working, core, err := e.store.CountByLayer()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalMemories: working + core,
		WorkingCount:  working,
		CoreCount:     core,
		Metrics:       e.tuner.Snapshot(),
	}, nil
}

// HebbianLinks returns every formed Hebbian link if id is "", or just id's
// neighbors (at or above the prune floor) otherwise.
func (e *Engine) HebbianLinks(id string) ([]Link, error) {
	if id == "" {
		return hebbian.AllLinks(e.store)
	}
	neighbors, err := hebbian.Neighbors(e.store, id, e.cfg.Get())
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(neighbors))
	for _, n := range neighbors {
		links = append(links, Link{SourceID: id, TargetID: n.ID, Strength: n.Strength})
	}
	return links, nil
}

// Activation returns a memory's current activation score and confidence
// label at the engine clock's current time, without reinforcing it.
func (e *Engine) Activation(id string) (value float64, label activation.ConfidenceLabel, err error) {
	mem, err := e.store.Get(id)
	if err != nil {
		return 0, "", err
	}
	a := activation.At(mem, e.clk.Now(), e.cfg.Get())
	return a, activation.Label(a), nil
}

// MaybeAdapt runs the adaptive tuner's rule pass if enough samples and time
// have elapsed since the last adaptation, returning the parameters it
// changed: nil when the gate did not open, an empty map when the rules ran
// but changed nothing. Callers typically call this after
// Consolidate, mirroring a sleep-cycle tuning pass.
func (e *Engine) MaybeAdapt() map[string]float64 {
	return e.tuner.Adapt()
}

// Close stops the config watcher (if any) and releases the storage handle.
func (e *Engine) Close() error {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	return e.store.Close()
}
