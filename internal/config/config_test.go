package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8420 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Embedding.Backend != "hash" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Index.Kind != "flat" || cfg.Keyword.Backend != "overlap" {
		t.Errorf("index = %+v keyword = %+v", cfg.Index, cfg.Keyword)
	}
	if cfg.Search.Weights != models.DefaultSearchWeights() {
		t.Errorf("weights = %+v", cfg.Search.Weights)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path not expanded: %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
index:
  kind: hnsw
search:
  weights:
    semantic: 0.6
    keyword: 0.3
    recency: 0.1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Index.Kind != "hnsw" {
		t.Errorf("kind = %q", cfg.Index.Kind)
	}
	want := models.SearchWeights{Semantic: 0.6, Keyword: 0.3, Recency: 0.1}
	if cfg.Search.Weights != want {
		t.Errorf("weights = %+v", cfg.Search.Weights)
	}
}

func TestLoadRelativePathsResolveAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  database_path: ./data/memory.db\n  index_dir: ./data/index\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/memory.db") {
		t.Errorf("database path = %q", cfg.Storage.DatabasePath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad index kind", "index:\n  kind: annoy\n"},
		{"bad keyword backend", "keyword:\n  backend: lucene\n"},
		{"weight out of range", "search:\n  weights:\n    semantic: 1.5\n    keyword: 0.3\n    recency: 0.2\n"},
		{"limit above max", "search:\n  default_limit: 500\n  max_limit: 100\n"},
		{"onnx without model", "embedding:\n  backend: onnx\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, zap.NewNop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != 9100 {
			t.Errorf("reloaded port = %d, want 9100", cfg.Server.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherKeepsPreviousConfigOnInvalidFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { reloaded <- cfg }, zap.NewNop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Invalid port fails validation; the callback must not fire for it.
	if err := os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		t.Fatalf("callback fired for invalid config: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 9200\n"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != 9200 {
			t.Errorf("reloaded port = %d, want 9200", cfg.Server.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for valid reload")
	}
}
