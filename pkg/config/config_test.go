package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Consensus.GoldenWaveThresholdMS != 2000 {
		t.Fatalf("golden_wave_threshold default = %d, want 2000", cfg.Consensus.GoldenWaveThresholdMS)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging.level default = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	data := []byte("consensus:\n  golden_wave_threshold: 5000\n  max_transactions_per_block: 10\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Consensus.GoldenWaveThresholdMS != 5000 {
		t.Fatalf("golden_wave_threshold = %d, want 5000", cfg.Consensus.GoldenWaveThresholdMS)
	}
	if cfg.Consensus.MaxTransactionsPerBlock != 10 {
		t.Fatalf("max_transactions_per_block = %d, want 10", cfg.Consensus.MaxTransactionsPerBlock)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Storage.MaxBlobSize != 50*1024*1024 {
		t.Fatalf("unset storage.max_blob_size should keep default, got %d", cfg.Storage.MaxBlobSize)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatal("expected error loading a nonexistent config file")
	}
}
