// Package config holds the engine's runtime-mutable parameter table and its
// YAML persistence, modeled on the load/hot-reload-from-yaml pattern in
// internal/reflex/engine.go.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config is the set of engine parameters the adaptive tuner (internal/tuner)
// and operators may mutate at runtime. Field names and defaults mirror the
// original engram.config.MemoryConfig this engine reimplements.
type Config struct {
	Mu1                      float64 `yaml:"mu1"`
	Mu2                      float64 `yaml:"mu2"`
	Alpha                    float64 `yaml:"alpha"`
	MinActivation            float64 `yaml:"min_activation"`
	ContextWeight            float64 `yaml:"context_weight"`
	WorkingToCoreThreshold   float64 `yaml:"working_to_core_threshold"`
	HebbianEnabled           bool    `yaml:"hebbian_enabled"`
	HebbianThreshold         int     `yaml:"hebbian_threshold"`
	HebbianDecay             float64 `yaml:"hebbian_decay"`
	HebbianPruneFloor        float64 `yaml:"hebbian_prune_floor"`
	HebbianCap               float64 `yaml:"hebbian_cap"`
	GraphExpandByDefault     bool    `yaml:"graph_expand_default"`
}

// Default returns the engine's default configuration.
func Default() *Config {
	return &Config{
		Mu1:                    0.1,
		Mu2:                    0.005,
		Alpha:                  0.1,
		MinActivation:          -8.0,
		ContextWeight:          1.0,
		WorkingToCoreThreshold: 1.0,
		HebbianEnabled:         true,
		HebbianThreshold:       3,
		HebbianDecay:           0.95,
		HebbianPruneFloor:      0.1,
		HebbianCap:             2.0,
		GraphExpandByDefault:   false,
	}
}

// Clone returns a deep copy (Config has no reference fields, so a value
// copy suffices, but Clone exists so callers never alias a live config).
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Load reads a YAML config file, layering it over Default() so a partial
// file only overrides the keys it sets.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Store is a concurrency-safe holder for the live configuration. The
// adaptive tuner and a file watcher may both write to it; readers (the
// recall/activation pipeline) always see the most recently committed
// value.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps cfg in a Store. A nil cfg defaults to Default().
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg}
}

// Get returns a snapshot copy of the current configuration.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Set replaces the live configuration.
func (s *Store) Set(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
}

// Apply mutates the live configuration under lock via fn, which receives
// the live Config itself and edits it in place. Used by the tuner so a
// read-modify-write sequence cannot race with a concurrent Set.
func (s *Store) Apply(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cfg)
}
