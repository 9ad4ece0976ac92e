// Package main is the doctext CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/doctext/internal/cli"
	"github.com/hyperjump/doctext/internal/config"
	"github.com/hyperjump/doctext/internal/extract"
	"github.com/hyperjump/doctext/internal/ingest"
	"github.com/hyperjump/doctext/internal/models"
	"github.com/hyperjump/doctext/internal/server"
	"github.com/hyperjump/doctext/internal/storage"
	"github.com/hyperjump/doctext/internal/watcher"
	"github.com/hyperjump/doctext/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/doctext/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and a missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
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
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
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
	case "extract":
		runExtract()
	case "serve", "server":
		runServe()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "methods":
		runMethods()
	case "version", "--version", "-v":
		fmt.Printf("doctext version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front, so "doctext extract a.pdf -json" parses -json.
func argsReorder(args []string) []string {
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

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage // nil when caching is disabled
	Extractor *extract.Extractor
	Ingest    *ingest.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withStore bool) (*Components, error) {
	extractor := extract.NewExtractor(cfg.Extraction, extract.WithLogger(logger))
	var store storage.Storage
	if withStore {
		s, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		store = s
	}
	return &Components{
		Storage:   store,
		Extractor: extractor,
		Ingest:    ingest.NewService(extractor, store, ingest.WithLogger(logger)),
	}, nil
}

// setup loads the config and builds the logger shared by all subcommands.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if debugFlag {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	jsonOut := fs.Bool("json", false, "write JSON records instead of text")
	mimetype := fs.String("mimetype", "", "mimetype of the input (default: from extension or content)")
	preview := fs.Int("preview", 0, "print at most this many characters of text (0 = all)")
	cache := fs.Bool("cache", false, "reuse and record results in the extraction database")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: doctext extract [flags] <file-or-directory>...")
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, *cache)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	failed, err := extractPaths(context.Background(), components.Ingest, fs.Args(), *mimetype, cfg.Watch.Extensions, format, *preview, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(2)
	}
}

// extractPaths extracts every file named in paths and every matching file under any
// directory in paths, writing each record to w. Returns how many extractions failed.
func extractPaths(ctx context.Context, svc *ingest.Service, paths []string, mimetype string, exts []string, format cli.OutputFormat, preview int, w io.Writer) (int, error) {
	failed := 0
	write := func(rec *models.Extraction) error {
		if !rec.Success {
			failed++
		}
		return cli.WriteExtraction(w, rec, format, preview)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return failed, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			var writeErr error
			_, err := svc.ExtractDirectory(ctx, p, exts, func(_ string, rec *models.Extraction) {
				if writeErr == nil {
					writeErr = write(rec)
				}
			})
			if err != nil {
				return failed, err
			}
			if writeErr != nil {
				return failed, writeErr
			}
			continue
		}
		var rec *models.Extraction
		if mimetype == "" {
			rec, err = svc.ExtractFile(ctx, p)
		} else {
			rec, err = extractFileAs(ctx, svc, p, mimetype)
		}
		if err != nil {
			return failed, err
		}
		if err := write(rec); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

// extractFileAs extracts path with an explicit mimetype. Oversized files are still
// rejected without being read.
func extractFileAs(ctx context.Context, svc *ingest.Service, path, mimetype string) (*models.Extraction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	cfg := svc.Extractor().Config()
	if info.Size() > cfg.MaxFileSizeBytes() {
		return svc.ExtractFile(ctx, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return svc.ExtractBytes(ctx, filepath.Base(path), mimetype, data)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, strategy attempts, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := newDropFolderWatcher(cfg, components.Ingest, logger)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(components.Ingest, components.Storage, cfg, logger, watchSvc, resolvedConfigPath)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// newDropFolderWatcher returns a watcher that extracts every settled file through svc.
func newDropFolderWatcher(cfg *config.Config, svc *ingest.Service, logger *zap.Logger) *watcher.Watcher {
	return watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			rec, err := svc.ExtractFile(context.Background(), path)
			if err != nil {
				logger.Warn("watch extract file failed", zap.String("path", path), zap.Error(err))
				return
			}
			if !rec.Success {
				logger.Warn("watch extraction unsuccessful",
					zap.String("path", path),
					zap.String("error_kind", string(rec.ErrorKind)),
				)
			}
		},
		watcher.WithLogger(logger),
	)
}

func runWatch() {
	args := os.Args[2:]
	if len(args) > 0 {
		switch args[0] {
		case "add", "remove", "list":
			runWatchRemote(args[0], args[1:])
			return
		}
	}

	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(args))

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	for _, d := range fs.Args() {
		abs, err := filepath.Abs(d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid directory %s: %v\n", d, err)
			os.Exit(1)
		}
		cfg.Watch.Directories = append(cfg.Watch.Directories, abs)
	}
	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("Usage: doctext watch [flags] <directory>...   (or set watch.directories in the config)")
		os.Exit(1)
	}

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w := newDropFolderWatcher(cfg, components.Ingest, logger)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	logger.Info("watching", zap.Strings("directories", w.Directories()))
	w.SyncExistingFiles()
	<-ctx.Done()
	w.Stop()
}

func runWatchRemote(sub string, args []string) {
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(argsReorder(args))
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: doctext watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: doctext watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	}
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Extractions      int64                  `json:"extractions"`
	Methods          []extract.MethodStatus `json:"methods"`
	Mimetypes        []string               `json:"mimetypes"`
	DatabasePath     string                 `json:"database_path,omitempty"`
	DiskUsageBytes   *int64                 `json:"disk_usage_bytes,omitempty"`
	WatchDirectories []string               `json:"watch_directories,omitempty"`
	Limits           statusLimits           `json:"limits"`
}

type statusLimits struct {
	MaxFileSizeMB  int   `json:"max_file_size_mb"`
	MaxTextLength  int   `json:"max_text_length"`
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the local database)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status, err = localStatus(context.Background(), cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := writeStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*statusResponse, error) {
	count, err := c.Storage.CountExtractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count extractions: %w", err)
	}
	limits := c.Extractor.Config()
	status := &statusResponse{
		Extractions:  count,
		Methods:      c.Extractor.Availability(ctx),
		Mimetypes:    extract.SupportedMimetypes(),
		DatabasePath: cfg.Storage.DatabasePath,
		Limits: statusLimits{
			MaxFileSizeMB:  limits.MaxFileSizeMB,
			MaxTextLength:  limits.MaxTextLength,
			MaxUploadBytes: cfg.Server.MaxUploadBytes(limits.MaxFileSizeMB),
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(cfg.Storage.DatabasePath)...); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func writeStatus(w io.Writer, status *statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "extractions:        %d   # records in the extraction database\n", status.Extractions)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database and WAL on disk\n", *status.DiskUsageBytes)
	}
	if status.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", status.DatabasePath)
	}
	fmt.Fprintf(w, "max_file_size_mb:   %d\n", status.Limits.MaxFileSizeMB)
	fmt.Fprintf(w, "max_text_length:    %d\n", status.Limits.MaxTextLength)
	for _, d := range status.WatchDirectories {
		fmt.Fprintf(w, "watch_directory:    %s\n", d)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# pdf methods")
	return cli.WriteMethods(w, status.Methods, cli.OutputText)
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

func runMethods() {
	fs := flag.NewFlagSet("methods", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	jsonOut := fs.Bool("json", false, "write JSON instead of text")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	extractor := extract.NewExtractor(cfg.Extraction, extract.WithLogger(logger))
	if err := cli.WriteMethods(os.Stdout, extractor.Availability(context.Background()), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`doctext - Plain-text extraction for PDF and Word documents

Usage:
  doctext extract [flags] <file>...   Extract text from files or directories
  doctext serve [flags]               Start the HTTP server and drop-folder watcher
  doctext watch [flags] <dir>...      Watch directories and extract new documents
  doctext watch <add|remove|list>     Manage the server's watched directories
  doctext status [flags]              Show database and extraction status
  doctext methods [flags]             Show which PDF methods are available
  doctext version                     Show version
  doctext help                        Show this help

Extract Flags:
  --config string    Config file path (default: /usr/local/etc/doctext/config.yaml)
  --json             Write JSON records
  --mimetype string  Mimetype of the input (default: from extension or content)
  --preview int      Print at most this many characters of text
  --cache            Reuse and record results in the extraction database
  --debug            Enable debug logging

Serve Flags:
  --config string    Config file path
  --debug            Enable debug logging

Status Flags:
  --config string    Config file path (for local database mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for the local database.
  --output string    Output format: text or json (default: text)

Examples:
  doctext extract report.pdf
  doctext extract --json --mimetype application/msword memo.bin
  doctext extract ~/Documents/contracts
  doctext serve
  doctext watch ~/Inbox
  doctext watch add /path/to/dropbox
  doctext methods`)
}
