package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadPartialFileLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mu1: 0.42\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mu1 != 0.42 {
		t.Fatalf("expected overridden mu1=0.42, got %v", cfg.Mu1)
	}
	if cfg.Mu2 != Default().Mu2 {
		t.Fatalf("expected mu2 absent from the file to keep default %v, got %v", Default().Mu2, cfg.Mu2)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Default()
	want.MinActivation = -5.5
	want.HebbianEnabled = false

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func TestStoreGetReturnsIndependentCopy(t *testing.T) {
	s := NewStore(Default())
	snapshot := s.Get()
	snapshot.Mu1 = 999

	if s.Get().Mu1 == 999 {
		t.Fatal("mutating a Get() snapshot must not affect the store")
	}
}

func TestStoreApplyMutatesLiveConfig(t *testing.T) {
	s := NewStore(Default())
	s.Apply(func(c *Config) { c.MinActivation = -3 })

	if s.Get().MinActivation != -3 {
		t.Fatalf("expected MinActivation=-3 after Apply, got %v", s.Get().MinActivation)
	}
}

func TestNewStoreNilDefaultsToDefault(t *testing.T) {
	s := NewStore(nil)
	if *s.Get() != *Default() {
		t.Fatal("expected NewStore(nil) to hold Default()")
	}
}
