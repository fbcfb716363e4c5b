// Package main is the cortexd CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/analyzer"
	"github.com/sourknives/cortex-memory/internal/config"
	"github.com/sourknives/cortex-memory/internal/dedup"
	"github.com/sourknives/cortex-memory/internal/embedding"
	"github.com/sourknives/cortex-memory/internal/keyword"
	"github.com/sourknives/cortex-memory/internal/learning"
	"github.com/sourknives/cortex-memory/internal/memory"
	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/internal/project"
	"github.com/sourknives/cortex-memory/internal/search"
	"github.com/sourknives/cortex-memory/internal/server"
	"github.com/sourknives/cortex-memory/internal/storage"
	"github.com/sourknives/cortex-memory/internal/tagging"
	"github.com/sourknives/cortex-memory/internal/vector"
	"github.com/sourknives/cortex-memory/pkg/utils"
)

var version = "dev"

const defaultServerURL = "http://localhost:8420"

// loadConfig resolves the effective config. An explicit path is loaded as-is.
// Otherwise config.yaml in the current directory wins (for development), then
// ~/.cortex-memory/config.yaml, then built-in defaults when no file exists.
// Returns the config and the path it was loaded from ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(local); statErr == nil {
			cfg, loadErr := config.Load(local)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, local, nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".cortex-memory", "config.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			cfg, loadErr := config.Load(candidate)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, candidate, nil
		}
	}
	return config.Default(), "", nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "store":
		runStore()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "compact":
		runCompact()
	case "version", "--version", "-v":
		fmt.Printf("cortexd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watcher *config.Watcher
	if resolvedPath != "" {
		engine := components.Engine
		watcher = config.NewWatcher(resolvedPath, func(updated *config.Config) {
			engine.SetWeights(updated.Search.Weights)
		}, logger)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watcher.Start(watchCtx); err != nil {
			logger.Warn("config watch disabled", zap.Error(err))
			watcher = nil
		}
	}

	srv := server.NewServer(
		components.Processor,
		components.Engine,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watcher != nil {
		watcher.Stop()
	}
	if err := components.Engine.Save(); err != nil {
		logger.Warn("index save failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runStore() {
	fs := flag.NewFlagSet("store", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage when server is not running)")
	tool := fs.String("tool", "cli", "name of the tool the exchange came from")
	projectID := fs.String("project", "", "project id to attach the memory to")
	userMsg := fs.String("user", "", "user message of the exchange")
	aiMsg := fs.String("ai", "", "assistant response of the exchange")
	_ = fs.Parse(os.Args[2:])

	if *userMsg == "" && *aiMsg == "" {
		fmt.Println("Usage: cortexd store --user <message> --ai <response> [flags]")
		os.Exit(1)
	}
	req := memory.TurnRequest{
		UserMessage: *userMsg,
		AIResponse:  *aiMsg,
		ToolName:    *tool,
		ProjectID:   *projectID,
	}

	var result memory.TurnResult
	if *serverURL != "" {
		res, err := storeViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Store failed: %v\n", err)
			os.Exit(1)
		}
		result = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		res, err := components.Processor.ProcessTurn(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Store failed: %v\n", err)
			os.Exit(1)
		}
		if err := components.Engine.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: index save failed: %v\n", err)
		}
		result = *res
	}

	if !result.Stored {
		fmt.Printf("Not stored: %s\n", result.Analysis.Reason)
		return
	}
	fmt.Printf("Stored: %s", result.MemoryID)
	if len(result.Tags) > 0 {
		fmt.Printf("  [%s]", strings.Join(result.Tags, ", "))
	}
	fmt.Println()
}

func storeViaHTTP(serverURL string, req memory.TurnRequest) (*memory.TurnResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/memories", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result memory.TurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

type searchResponse struct {
	Results []models.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	searchType := fs.String("type", "hybrid", "search type: hybrid, semantic, or keyword")
	projectID := fs.String("project", "", "restrict results to one project id")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: cortexd search [flags] <query>")
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: cortexd search [flags] <query>")
		os.Exit(1)
	}

	query := models.SearchQuery{
		Text:  queryStr,
		Type:  models.SearchType(*searchType),
		Limit: *limit,
	}
	if *projectID != "" {
		query.Filters = map[string]any{"project_id": *projectID}
	}

	var response searchResponse
	if *serverURL != "" {
		res, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		results, err := components.Engine.Search(context.Background(), query.Text, query.Limit, query.Filters, query.Type)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = searchResponse{Results: results, Count: len(results)}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if response.Count == 0 {
			fmt.Println("No results.")
			return
		}
		for i, res := range response.Results {
			fmt.Printf("%d. %s  (score %.3f)\n", i+1, res.ID, res.CombinedScore)
			content := res.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			fmt.Printf("   %s\n", strings.ReplaceAll(content, "\n", " "))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query models.SearchQuery) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Conversations   int64                `json:"conversations"`
	Projects        int                  `json:"projects"`
	VectorIndexSize int                  `json:"vector_index_size"`
	SearchWeights   models.SearchWeights `json:"search_weights"`
	Config          map[string]any       `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		convCount, err := components.Storage.CountConversations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count conversations failed: %v\n", err)
			os.Exit(1)
		}
		projects, err := components.Storage.ListProjects(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List projects failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Conversations:   convCount,
			Projects:        len(projects),
			VectorIndexSize: components.Engine.Len(),
			SearchWeights:   components.Engine.Weights(),
			Config: map[string]any{
				"vector_index_type":    cfg.Index.Kind,
				"embedding_backend":    cfg.Embedding.Backend,
				"embedding_dimensions": cfg.Embedding.Dimensions,
				"database_path":        cfg.Storage.DatabasePath,
				"index_dir":            cfg.Storage.IndexDir,
			},
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("conversations:      %d\n", status.Conversations)
		fmt.Printf("projects:           %d\n", status.Projects)
		fmt.Printf("vector_index_size:  %d\n", status.VectorIndexSize)
		fmt.Printf("search_weights:     semantic=%.2f keyword=%.2f recency=%.2f\n",
			status.SearchWeights.Semantic, status.SearchWeights.Keyword, status.SearchWeights.Recency)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"vector_index_type", "embedding_backend", "embedding_dimensions", "database_path", "index_dir"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-21s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// runCompact rebuilds the vector store without soft-deleted entries and
// persists the result. Run it while the server is stopped; the store is
// opened directly.
func runCompact() {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	removed, err := components.Engine.Compact()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compaction failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Engine.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Index save failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Compacted: %d deleted entr%s reclaimed, %d live\n",
		removed, plural(removed, "y", "ies"), components.Engine.Len())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Engine    *search.Engine
	Processor *memory.Processor
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Backend {
	case "onnx":
		onnxEmbedder, onnxErr := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
		)
		if onnxErr != nil {
			logger.Warn("onnx embedder unavailable, falling back to hash",
				zap.String("model_path", cfg.Embedding.ModelPath),
				zap.Error(onnxErr))
			embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = onnxEmbedder
		}
	default:
		embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}
	cached, err := embedding.NewCachedEmbedder(embedder, int64(cfg.Embedding.CacheSize))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}

	vectorStore, err := vector.NewStore(cfg.Embedding.Dimensions, vector.Kind(cfg.Index.Kind), cfg.Storage.IndexDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	keywordIndex, err := keyword.New(keyword.Backend(cfg.Keyword.Backend), cfg.Keyword.BlevePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	engine := search.NewEngine(vectorStore, keywordIndex, cached, cfg.Storage.IndexDir, logger)
	if err := engine.Initialize(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load indices: %w", err)
	}
	engine.SetWeights(cfg.Search.Weights)

	processor := memory.NewProcessor(
		store,
		engine,
		analyzer.New(nil, logger),
		dedup.NewDetector(store, engine, logger),
		learning.NewTracker(store, logger),
		tagging.NewTagger(logger),
		project.NewDetector(store, logger),
		logger,
	)

	return &Components{
		Storage:   store,
		Embedder:  cached,
		Engine:    engine,
		Processor: processor,
	}, nil
}

func printUsage() {
	fmt.Println(`cortexd - Personal memory server for AI coding tools

Usage:
  cortexd server [flags]            Start the HTTP server
  cortexd store [flags]             Offer one conversation exchange for storage
  cortexd search [flags] <query>    Search stored memories
  cortexd status [flags]            Show storage and index status
  cortexd compact [flags]           Rebuild the vector store without deleted entries
  cortexd version                   Show version
  cortexd help                      Show this help

Server Flags:
  --config string    Config file path (default: ./config.yaml, then ~/.cortex-memory/config.yaml)
  --debug            Enable debug logging

Store Flags:
  --server string    Server URL (default: http://localhost:8420). Use empty (--server "") for direct storage.
  --tool string      Tool name the exchange came from (default: cli)
  --project string   Project id to attach the memory to
  --user string      User message
  --ai string        Assistant response

Search Flags:
  --server string    Server URL (default: http://localhost:8420). Use empty (--server "") for direct storage.
  --limit int        Number of results (default: 10)
  --type string      Search type: hybrid, semantic, or keyword (default: hybrid)
  --project string   Restrict results to one project id
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8420). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Compact Flags:
  --config string    Config file path. Run while the server is stopped.

Examples:
  cortexd server
  cortexd store --tool cursor --user "remember this: I prefer tabs" --ai "Noted."
  cortexd search "postgres connection pooling"
  cortexd search --type keyword --limit 5 "redis timeout"
  cortexd status --output json
  cortexd compact`)
}
