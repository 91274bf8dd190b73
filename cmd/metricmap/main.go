// Package main is the metricmap CLI entry point.
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
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/config"
	"github.com/finlens/metricmap/internal/embedding"
	"github.com/finlens/metricmap/internal/lexical"
	"github.com/finlens/metricmap/internal/mapping"
	"github.com/finlens/metricmap/internal/server"
	"github.com/finlens/metricmap/internal/store"
	"github.com/finlens/metricmap/internal/vocab"
	"github.com/finlens/metricmap/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/metricmap/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "metricmap server" from the project dir uses the
// project's config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
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
	case "map":
		runMap()
	case "status":
		runStatus()
	case "check":
		runCheck()
	case "version", "--version", "-v":
		fmt.Printf("metricmap version %s\n", version)
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
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (tier fallthrough, state transitions, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
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
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Probe the remote endpoint once at startup; until a probe succeeds the
	// remote tier stays disabled and mapping runs on cache + local.
	if components.Remote != nil {
		probeCtx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout())
		components.Remote.HealthCheck(probeCtx)
		cancel()
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Vocab.Path != "" && cfg.Vocab.Watch {
		w := vocab.NewWatcher(cfg.Vocab.Path, func(metrics []string) {
			components.Vocab.Replace(metrics)
			if components.Suggester != nil {
				if err := components.Suggester.Replace(components.Vocab.Metrics()); err != nil {
					logger.Warn("suggestion index rebuild failed", zap.Error(err))
				}
			}
		}, logger)
		if err := w.Start(watchCtx); err != nil {
			logger.Warn("vocabulary watch failed to start", zap.String("path", cfg.Vocab.Path), zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(
		components.Pipeline,
		components.Remote,
		components.Store,
		&cfg.Server,
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
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runMap() {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run the pipeline in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: metricmap map [flags] <label> [label ...]")
		fmt.Println("Each argument is one financial statement label, e.g.:")
		fmt.Println(`  metricmap map "Net Sales" "PAT" "Sundry Debtors"`)
		os.Exit(1)
	}
	labels := fs.Args()

	var result *mapping.Result
	if *serverURL != "" {
		res, err := mapViaHTTP(*serverURL, labels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Mapping failed: %v\n", err)
			os.Exit(1)
		}
		result = res
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

		ctx := context.Background()
		if components.Remote != nil {
			probeCtx, cancel := context.WithTimeout(ctx, cfg.Remote.Timeout())
			components.Remote.HealthCheck(probeCtx)
			cancel()
		}
		result, err = components.Pipeline.MapMetrics(ctx, labels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Mapping failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		printMapResult(result)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printMapResult(r *mapping.Result) {
	printBand := func(name string, band map[string]mapping.Mapping) {
		if len(band) == 0 {
			return
		}
		fmt.Printf("%s:\n", name)
		labels := make([]string, 0, len(band))
		for l := range band {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			m := band[l]
			fmt.Printf("  %-40s -> %-30s (%.3f)\n", l, m.Target, m.Confidence)
		}
	}
	printBand("high_confidence", r.HighConfidence)
	printBand("medium_confidence", r.MediumConfidence)
	printBand("low_confidence", r.LowConfidence)
	if len(r.RequiresManual) > 0 {
		fmt.Println("requires_manual:")
		for _, l := range r.RequiresManual {
			fmt.Printf("  %s\n", l)
			if hints := r.Suggestions[l]; len(hints) > 0 {
				fmt.Printf("    suggestions: %v\n", hints)
			}
		}
	}
	fmt.Printf("\nmethod: %s   query_time_ms: %d\n", r.Method, r.QueryTime)
}

func mapViaHTTP(serverURL string, labels []string) (*mapping.Result, error) {
	body, err := json.Marshal(map[string][]string{"labels": labels})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/map", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result mapping.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	RemoteConfigured bool                      `json:"remote_configured"`
	LocalAvailable   bool                      `json:"local_available"`
	VocabularySize   int                       `json:"vocabulary_size"`
	StoredEmbeddings *int                      `json:"stored_embeddings,omitempty"`
	Cache            embedding.CacheStats      `json:"cache"`
	RemoteHealth     *embedding.HealthSnapshot `json:"remote_health,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
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
		fmt.Printf("remote_configured:  %t\n", status.RemoteConfigured)
		if status.RemoteHealth != nil {
			fmt.Printf("remote_available:   %t   # last probe: %s\n",
				status.RemoteHealth.Available, status.RemoteHealth.LastCheck.Format(time.RFC3339))
		}
		fmt.Printf("local_available:    %t\n", status.LocalAvailable)
		fmt.Printf("vocabulary_size:    %d\n", status.VocabularySize)
		if status.StoredEmbeddings != nil {
			fmt.Printf("stored_embeddings:  %d\n", *status.StoredEmbeddings)
		}
		fmt.Println()
		fmt.Println("# embedding cache")
		fmt.Printf("size:               %d / %d\n", status.Cache.Size, status.Cache.Capacity)
		fmt.Printf("hits:               %d\n", status.Cache.Hits)
		fmt.Printf("misses:             %d\n", status.Cache.Misses)
		fmt.Printf("evictions:          %d\n", status.Cache.Evictions)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = probe the endpoint in-process)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Post(*serverURL+"/api/v1/health-check", "application/json", bytes.NewReader([]byte("{}")))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		var body struct {
			Configured bool                      `json:"configured"`
			Available  bool                      `json:"available"`
			Health     *embedding.HealthSnapshot `json:"health,omitempty"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		if !body.Configured {
			fmt.Println("remote endpoint: not configured")
			return
		}
		fmt.Printf("remote endpoint: available=%t\n", body.Available)
		if body.Health != nil && len(body.Health.Info) > 0 {
			fmt.Printf("info: %v\n", body.Health.Info)
		}
		if !body.Available {
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Remote.URL == "" {
		fmt.Println("remote endpoint: not configured")
		return
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	health := embedding.NewHealth(cfg.Remote.URL)
	remote := embedding.NewRemoteClient(cfg.Remote.URL, cfg.Remote.APIKey, cfg.Remote.Timeout(), cfg.Remote.MaxRetries, health, logger)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout())
	defer cancel()
	ok := remote.HealthCheck(ctx)
	fmt.Printf("remote endpoint: available=%t\n", ok)
	if snap := health.Snapshot(); len(snap.Info) > 0 {
		fmt.Printf("info: %v\n", snap.Info)
	}
	if !ok {
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store     *store.Store
	Remote    *embedding.RemoteClient
	Local     embedding.Embedder
	Resolver  *embedding.Resolver
	Vocab     *vocab.Vocabulary
	Suggester *lexical.Suggester
	Pipeline  *mapping.Pipeline
}

func (c *Components) Close() {
	if c.Local != nil {
		_ = c.Local.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Suggester != nil {
		_ = c.Suggester.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var st *store.Store
	if cfg.Store.Path != "" {
		s, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding store: %w", err)
		}
		st = s
	}

	var remote *embedding.RemoteClient
	if cfg.Remote.URL != "" {
		health := embedding.NewHealth(cfg.Remote.URL)
		remote = embedding.NewRemoteClient(
			cfg.Remote.URL,
			cfg.Remote.APIKey,
			cfg.Remote.Timeout(),
			cfg.Remote.MaxRetries,
			health,
			logger,
		)
	}

	// When the model artifact is not resolvable the local tier is simply
	// absent: the resolver reports it unavailable and labels fall through to
	// manual review instead of being embedded with a stand-in.
	var local embedding.Embedder
	engine, err := embedding.NewLocalEngine(cfg.Local.ModelPath, cfg.Local.Dimensions, cfg.Local.MaxTokens)
	if err != nil {
		logger.Warn("local inference engine unavailable",
			zap.String("model_path", cfg.Local.ModelPath),
			zap.Error(err))
	} else {
		local = engine
	}

	var persistent embedding.PersistentStore
	if st != nil {
		persistent = st
	}
	resolver := embedding.NewResolver(
		embedding.NewCache(cfg.Cache.MaxEntries),
		persistent,
		remote,
		local,
		cfg.Remote.FallbackEnabled(),
		logger,
	)

	metrics := vocab.Default()
	if cfg.Vocab.Path != "" {
		loaded, err := vocab.LoadFile(cfg.Vocab.Path)
		if err != nil {
			logger.Warn("vocabulary load failed, using built-in metrics",
				zap.String("path", cfg.Vocab.Path),
				zap.Error(err))
		} else {
			metrics = loaded
		}
	}
	v := vocab.New(metrics)

	var lx *lexical.Suggester
	var suggester mapping.Suggester
	if cfg.Mapping.SuggestionsEnabled() {
		lx, err = lexical.New(v.Metrics())
		if err != nil {
			logger.Warn("suggestion index unavailable", zap.Error(err))
		} else {
			suggester = lx
		}
	}

	pipeline := mapping.NewPipeline(resolver, v, &cfg.Mapping, suggester, logger)

	return &Components{
		Store:     st,
		Remote:    remote,
		Local:     local,
		Resolver:  resolver,
		Vocab:     v,
		Suggester: lx,
		Pipeline:  pipeline,
	}, nil
}

func printUsage() {
	fmt.Println(`metricmap - Map financial statement labels to canonical metrics

Usage:
  metricmap server [flags]            Start the HTTP server
  metricmap map [flags] <label>...    Map labels to canonical metrics
  metricmap status [flags]            Show server/cache/health status
  metricmap check [flags]             Probe the remote embedding endpoint
  metricmap version                   Show version
  metricmap help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/metricmap/config.yaml)
  --debug            Enable debug logging (tier fallthrough, state transitions, etc.)

Map Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run in-process.
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Check Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to probe in-process.

Examples:
  metricmap server
  metricmap map "Net Sales" "PAT" "Sundry Debtors"
  metricmap map --output json "Total Revenue"
  metricmap status
  metricmap check`)
}
