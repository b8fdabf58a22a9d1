// Package main is the Ruiji CLI entry point.
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

	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/fetch"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/refresher"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/similarity"
	"github.com/hyperjump/ruiji/internal/store"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "ruiji server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
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
	case "match":
		runMatch()
	case "update":
		runUpdate()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (updates, file changes, match queries)")
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
		zap.Int("indexes", len(cfg.Indexes)),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Refresh.UpdateOnStart {
		report := updateAllReport(context.Background(), components)
		for _, res := range report.Results {
			if res.Error != "" {
				logger.Warn("startup update failed", zap.String("index", res.Index), zap.String("error", res.Error))
			} else {
				logger.Info("startup update done",
					zap.String("index", res.Index), zap.Int("added", res.Added), zap.Int("removed", res.Removed))
			}
		}
	}

	refreshOpts := []refresher.Option{}
	if debugMode {
		refreshOpts = append(refreshOpts, refresher.WithLogger(logger))
	}
	refreshSvc := refresher.New(components.Registry, cfg.Refresh.Schedule, refreshOpts...)
	if cfg.Refresh.WatchFilesOrDefault() {
		for name, idx := range components.Indexes {
			ff, ok := components.Fetchers[name].(*fetch.FileFetcher)
			if !ok {
				continue
			}
			if err := refreshSvc.WatchFile(ff.Path(), idx); err != nil {
				logger.Warn("watch vocabulary file failed", zap.String("path", ff.Path()), zap.Error(err))
			}
		}
	}
	if err := refreshSvc.Start(); err != nil {
		logger.Fatal("Failed to start refresher", zap.Error(err))
	}
	defer refreshSvc.Stop()

	srv := server.NewServer(components.Indexes, components.Registry, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	refreshSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// buildMatchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildMatchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// matchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func matchArgsReorder(args []string) []string {
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

func printMatchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ruiji match [flags] --index <name> <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ruiji match --index breeds bagle
  ruiji match --index countries "untied states"
  ruiji match --index breeds --output json poodle
  ruiji match --server "" --index breeds bagle    # direct mode, no server needed
`)
}

func runMatch() {
	matchArgs := matchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = build indexes locally from config)")
	indexName := fs.String("index", "", "index name (required)")
	update := fs.Bool("update", false, "in direct mode, update the index before matching")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printMatchUsage(fs) }
	_ = fs.Parse(matchArgs)

	query := buildMatchQuery(fs.Args())
	if query == "" || *indexName == "" {
		printMatchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		response, err := matchViaHTTP(*serverURL, &models.MatchRequest{Index: *indexName, Query: query})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteMatch(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct mode: build the indexes from config without a running server.
	components := mustInitialize(*configPath)
	defer components.Close()

	idx, ok := components.Indexes[*indexName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown index %q\n", *indexName)
		os.Exit(1)
	}
	ctx := context.Background()
	if *update {
		if _, err := idx.Update(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
			os.Exit(1)
		}
	}
	match, err := idx.Similar(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		os.Exit(1)
	}
	response := &models.MatchResponse{Index: *indexName, Query: query, Value: match.Value, Score: match.Score}
	if err := cli.WriteMatch(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runUpdate() {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = build indexes locally from config)")
	indexName := fs.String("index", "", "index name (empty = update all)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)

	var (
		report *models.UpdateReport
		err    error
	)
	if *serverURL != "" {
		report, err = updateViaHTTP(*serverURL, *indexName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		ctx := context.Background()
		if *indexName != "" {
			idx, ok := components.Indexes[*indexName]
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown index %q\n", *indexName)
				os.Exit(1)
			}
			delta, updateErr := idx.Update(ctx)
			res := models.UpdateResult{Index: *indexName, Added: delta.Added, Removed: delta.Removed}
			if updateErr != nil {
				res.Error = updateErr.Error()
			}
			report = &models.UpdateReport{Results: []models.UpdateResult{res}}
		} else {
			report = updateAllReport(ctx, components)
		}
	}

	if err := cli.WriteUpdateReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(report.Failed()) > 0 {
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = build indexes locally from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)

	var statuses []models.IndexStatus
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		statuses = res
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		ctx := context.Background()
		for _, name := range components.Names {
			idx := components.Indexes[name]
			status := models.IndexStatus{Name: name, State: idx.State().String()}
			if n, err := idx.Len(ctx); err == nil {
				status.Size = n
			}
			if err := idx.LastError(); err != nil {
				status.LastError = err.Error()
			}
			statuses = append(statuses, status)
		}
	}

	if err := cli.WriteStatuses(os.Stdout, statuses, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

func matchViaHTTP(serverURL string, req *models.MatchRequest) (*models.MatchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/match", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func updateViaHTTP(serverURL, indexName string) (*models.UpdateReport, error) {
	url := serverURL + "/api/v1/update"
	if indexName != "" {
		url = serverURL + "/api/v1/indexes/" + indexName + "/update"
	}
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if indexName != "" {
		var res models.UpdateResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &models.UpdateReport{Results: []models.UpdateResult{res}}, nil
	}
	var report models.UpdateReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &report, nil
}

func statusViaHTTP(serverURL string) ([]models.IndexStatus, error) {
	resp, err := http.Get(serverURL + "/api/v1/indexes")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var statuses []models.IndexStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return statuses, nil
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Registry *similarity.Registry
	Indexes  map[string]*similarity.Index
	Fetchers map[string]fetch.Fetcher
	Names    []string // config order
}

func (c *Components) Close() {
	for _, idx := range c.Indexes {
		_ = idx.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// mustInitialize loads config and builds all components, exiting on failure.
// Used by the direct-mode subcommands.
func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	// One embedder serves every index so all stores share one embedding space.
	embedder, err := embedding.New(embedding.Config{
		Backend:       cfg.Embedding.Backend,
		Dimensions:    cfg.Embedding.Dimensions,
		CacheSize:     cfg.Embedding.CacheSize,
		OllamaHost:    cfg.Embedding.OllamaHost,
		OllamaModel:   cfg.Embedding.OllamaModel,
		OpenAIAPIKey:  cfg.Embedding.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Embedding.OpenAIBaseURL,
		OpenAIModel:   cfg.Embedding.OpenAIModel,
		ModelPath:     cfg.Embedding.ModelPath,
		MaxTokens:     cfg.Embedding.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	registry := similarity.NewRegistry()
	indexes := make(map[string]*similarity.Index, len(cfg.Indexes))
	fetchers := make(map[string]fetch.Fetcher, len(cfg.Indexes))
	names := make([]string, 0, len(cfg.Indexes))

	for _, ic := range cfg.Indexes {
		fetcher, err := fetch.New(fetch.Config{
			Type:   ic.Source.Type,
			DSN:    ic.Source.DSN,
			Table:  ic.Source.Table,
			Column: ic.Source.Column,
			URL:    ic.Source.URL,
			Path:   ic.Source.Path,
			Values: ic.Source.Values,
		})
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", ic.Name, err)
		}
		key := similarity.Key{
			Fetcher:  ic.Source.Identity(),
			Store:    ic.Store.Identity(),
			Embedder: cfg.Embedding.Identity(),
		}
		ic := ic
		idx, err := registry.GetOrCreate(key, func() (*similarity.Index, error) {
			st, err := store.New(ic.Store.Type, ic.Store.Path, embedder.Dimensions())
			if err != nil {
				return nil, err
			}
			idxOpts := []similarity.Option{}
			if debug && logger != nil {
				idxOpts = append(idxOpts, similarity.WithLogger(logger))
			}
			return similarity.New(key, fetcher, embedder, st, idxOpts...)
		})
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", ic.Name, err)
		}
		indexes[ic.Name] = idx
		fetchers[ic.Name] = fetcher
		names = append(names, ic.Name)
	}

	return &Components{
		Embedder: embedder,
		Registry: registry,
		Indexes:  indexes,
		Fetchers: fetchers,
		Names:    names,
	}, nil
}

// updateAllReport runs a bulk update and translates registry keys back to
// configured index names.
func updateAllReport(ctx context.Context, components *Components) *models.UpdateReport {
	keyToName := make(map[string]string, len(components.Indexes))
	for name, idx := range components.Indexes {
		keyToName[idx.Key().String()] = name
	}
	results := components.Registry.UpdateAll(ctx)
	report := &models.UpdateReport{Results: make([]models.UpdateResult, 0, len(results))}
	for _, res := range results {
		name, ok := keyToName[res.Key.String()]
		if !ok {
			name = res.Key.String()
		}
		out := models.UpdateResult{Index: name, Added: res.Delta.Added, Removed: res.Delta.Removed}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		report.Results = append(report.Results, out)
	}
	return report
}

func printUsage() {
	fmt.Println(`ruiji - Semantic similarity index for dynamic vocabularies

Usage:
  ruiji server [flags]                 Start the HTTP server
  ruiji match [flags] <query>          Map free text to the closest stored value
  ruiji update [flags]                 Refresh index contents from their sources
  ruiji status [flags]                 Show index states and sizes
  ruiji version                        Show version
  ruiji help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging (updates, file changes, match queries)

Match Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to build indexes locally.
  --index string     Index name (required)
  --update           In direct mode, update the index before matching
  --output string    Output format: text or json (default: text)

Update Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to build indexes locally.
  --index string     Index name (empty = update all)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to build indexes locally.
  --output string    Output format: text or json (default: text)

Examples:
  ruiji server
  ruiji match --index breeds bagle
  ruiji match --index countries "untied states"
  ruiji update
  ruiji update --index breeds
  ruiji status --output json
  ruiji match --server "" --index breeds --update bagle   # no server needed`)
}
