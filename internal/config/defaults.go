package config

import (
	"fmt"

	"github.com/sourknives/cortex-memory/internal/models"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "~/.cortex-memory/memory.db"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "~/.cortex-memory/index"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "hash"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Index.Kind == "" {
		cfg.Index.Kind = "flat"
	}
	if cfg.Keyword.Backend == "" {
		cfg.Keyword.Backend = "overlap"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	zero := models.SearchWeights{}
	if cfg.Search.Weights == zero {
		cfg.Search.Weights = models.DefaultSearchWeights()
	}
}

// Static validation tables: every tunable is checked against an explicit
// range or enum at load time.
var intRanges = []struct {
	key      string
	get      func(*Config) int
	min, max int
}{
	{"server.port", func(c *Config) int { return c.Server.Port }, 1, 65535},
	{"embedding.dimensions", func(c *Config) int { return c.Embedding.Dimensions }, 8, 4096},
	{"embedding.max_tokens", func(c *Config) int { return c.Embedding.MaxTokens }, 16, 8192},
	{"embedding.cache_size", func(c *Config) int { return c.Embedding.CacheSize }, 1, 10000000},
	{"search.default_limit", func(c *Config) int { return c.Search.DefaultLimit }, 1, 1000},
	{"search.max_limit", func(c *Config) int { return c.Search.MaxLimit }, 1, 10000},
}

var enums = []struct {
	key     string
	get     func(*Config) string
	allowed []string
}{
	{"embedding.backend", func(c *Config) string { return c.Embedding.Backend }, []string{"hash", "onnx"}},
	{"index.kind", func(c *Config) string { return c.Index.Kind }, []string{"flat", "ivf", "hnsw"}},
	{"keyword.backend", func(c *Config) string { return c.Keyword.Backend }, []string{"overlap", "bleve"}},
}

var weightRanges = []struct {
	key string
	get func(*Config) float64
}{
	{"search.weights.semantic", func(c *Config) float64 { return c.Search.Weights.Semantic }},
	{"search.weights.keyword", func(c *Config) float64 { return c.Search.Weights.Keyword }},
	{"search.weights.recency", func(c *Config) float64 { return c.Search.Weights.Recency }},
}

// Validate checks cfg against the validation tables.
func Validate(cfg *Config) error {
	for _, r := range intRanges {
		if v := r.get(cfg); v < r.min || v > r.max {
			return fmt.Errorf("config %s: %d out of range [%d, %d]", r.key, v, r.min, r.max)
		}
	}
	for _, e := range enums {
		v := e.get(cfg)
		ok := false
		for _, allowed := range e.allowed {
			if v == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("config %s: %q not one of %v", e.key, v, e.allowed)
		}
	}
	sum := 0.0
	for _, w := range weightRanges {
		v := w.get(cfg)
		if v < 0 || v > 1 {
			return fmt.Errorf("config %s: %v out of range [0, 1]", w.key, v)
		}
		sum += v
	}
	if sum <= 0 {
		return fmt.Errorf("config search.weights: weights must not all be zero")
	}
	if cfg.Search.DefaultLimit > cfg.Search.MaxLimit {
		return fmt.Errorf("config search.default_limit: %d exceeds max_limit %d",
			cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if cfg.Embedding.Backend == "onnx" && cfg.Embedding.ModelPath == "" {
		return fmt.Errorf("config embedding.model_path: required for the onnx backend")
	}
	if cfg.Keyword.Backend == "bleve" && cfg.Keyword.BlevePath == "" {
		return fmt.Errorf("config keyword.bleve_path: required for the bleve backend")
	}
	return nil
}
