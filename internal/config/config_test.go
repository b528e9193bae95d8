package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
storage:
  database_path: ./data/cortex.db
  vector_index_path: /var/lib/cortex/vectors.idx
embedding:
  provider: mock
  dimensions: 128
ingest:
  chunk_size: 500
  chunk_overlap: 100
retrieval:
  default_top_k: 3
watch:
  directories:
    - /srv/docs
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not set")
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server config = %+v", cfg.Server)
	}
	// Relative ./ paths are resolved against the config directory.
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/cortex.db") {
		t.Errorf("database path = %q", cfg.Storage.DatabasePath)
	}
	if cfg.Storage.VectorIndexPath != "/var/lib/cortex/vectors.idx" {
		t.Errorf("absolute path was rewritten: %q", cfg.Storage.VectorIndexPath)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 128 {
		t.Errorf("embedding config = %+v", cfg.Embedding)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 100 {
		t.Errorf("ingest config = %+v", cfg.Ingest)
	}
	if cfg.Retrieval.DefaultTopK != 3 {
		t.Errorf("default top k = %d", cfg.Retrieval.DefaultTopK)
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("invalid yaml should fail")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Ingest.ChunkSize != 800 || cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("default chunking = %d/%d, want 800/200", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.DefaultTopK != 5 || cfg.Retrieval.MaxTopK != 100 {
		t.Errorf("default retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Storage.VectorIndexType != "flat" {
		t.Errorf("default index type = %q, want flat", cfg.Storage.VectorIndexType)
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("default watch extensions not set")
	}
}
