// Package main is the Cortex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cortexbase/cortex/internal/config"
	"github.com/cortexbase/cortex/internal/embedding"
	"github.com/cortexbase/cortex/internal/extract"
	"github.com/cortexbase/cortex/internal/generate"
	"github.com/cortexbase/cortex/internal/ingest"
	"github.com/cortexbase/cortex/internal/models"
	"github.com/cortexbase/cortex/internal/retrieval"
	"github.com/cortexbase/cortex/internal/server"
	"github.com/cortexbase/cortex/internal/storage"
	"github.com/cortexbase/cortex/internal/vector"
	"github.com/cortexbase/cortex/internal/watcher"
	"github.com/cortexbase/cortex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/cortex/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("cortex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: cortex <command> [flags]

Commands:
  server    Run the Cortex API server
  upload    Upload a file to a running server for ingestion
  query     Ask a question against the ingested corpus
  status    Show store counts and index size
  version   Print version
`)
}

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
	}
	return config.Load(path)
}

// components holds the wired core: stores and coordinators. Everything is
// constructed once at process start and injected; there are no package-level
// singletons.
type components struct {
	Storage      *storage.SQLiteStorage
	Index        vector.Index
	Embedder     embedding.Embedder
	Generator    generate.Generator
	Ingestor     *ingest.Ingestor
	FileIngestor *ingest.FileIngestor
	Retriever    *retrieval.Retriever
}

func (c *components) Close() {
	_ = c.Embedder.Close()
	_ = c.Index.Close()
	_ = c.Storage.Close()
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	index, err := vector.NewIndex(cfg.Storage.VectorIndexType, cfg.Embedding.Dimensions, cfg.Storage.VectorIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		remote, err := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		})
		if err != nil {
			_ = index.Close()
			_ = store.Close()
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = remote
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	var generator generate.Generator
	if cfg.Generation.Enabled {
		generator, err = generate.NewRemoteGenerator(generate.RemoteConfig{
			BaseURL:   cfg.Generation.BaseURL,
			APIKeyEnv: cfg.Generation.APIKeyEnv,
			Model:     cfg.Generation.Model,
			MaxTokens: cfg.Generation.MaxTokens,
			Timeout:   time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		})
		if err != nil {
			_ = embedder.Close()
			_ = index.Close()
			_ = store.Close()
			return nil, fmt.Errorf("create generator: %w", err)
		}
	}

	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		_ = embedder.Close()
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	var ingestOpts []ingest.Option
	var retrieveOpts []retrieval.Option
	if debug {
		ingestOpts = append(ingestOpts, ingest.WithLogger(logger))
		retrieveOpts = append(retrieveOpts, retrieval.WithLogger(logger))
	}
	ingestor := ingest.NewIngestor(store, embedder, index, chunker, ingestOpts...)

	// Transcription and OCR are external collaborators; capability flags in
	// the config must stay off until an implementation is wired in here.
	var transcriber ingest.Transcriber
	var ocr ingest.OCRReader
	if cfg.Ingest.TranscriptionEnabled {
		_ = embedder.Close()
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("transcription_enabled is set but no transcriber is configured in this build")
	}
	if cfg.Ingest.OCREnabled {
		_ = embedder.Close()
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("ocr_enabled is set but no OCR reader is configured in this build")
	}
	fileIngestor := ingest.NewFileIngestor(ingestor, extract.NewExtractor(), transcriber, ocr, logger)

	retriever := retrieval.NewRetriever(store, embedder, index, retrieveOpts...)

	return &components{
		Storage:      store,
		Index:        index,
		Embedder:     embedder,
		Generator:    generator,
		Ingestor:     ingestor,
		FileIngestor: fileIngestor,
		Retriever:    retriever,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
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

	comps, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		var watchOpts []watcher.Option
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := comps.FileIngestor.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		comps.Ingestor,
		comps.FileIngestor,
		comps.Retriever,
		comps.Generator,
		comps.Storage,
		comps.Index,
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
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: cortex upload [flags] <file> [file...]")
		os.Exit(1)
	}
	for _, path := range fs.Args() {
		result, err := uploadViaHTTP(*serverURL, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upload %s failed: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s: doc_id=%s chunks=%d\n", path, result.DocID, result.ChunkCount)
	}
}

func uploadViaHTTP(serverURL, path string) (*models.IngestResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(serverURL+"/api/v1/upload", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var result models.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	topK := fs.Int("top-k", 0, "number of source chunks to retrieve (0 = server default)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: cortex query [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	payload, _ := json.Marshal(map[string]interface{}{"query": question, "top_k": *topK})
	resp, err := http.Post(*serverURL+"/api/v1/query", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Query failed: server returned %d: %s\n", resp.StatusCode, strings.TrimSpace(string(data)))
		os.Exit(1)
	}
	var response models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	if response.Answer != "" {
		fmt.Printf("%s\n\n", response.Answer)
	}
	fmt.Printf("Sources (%d):\n", len(response.Sources))
	for i, src := range response.Sources {
		name := src.Filename
		if name == "" {
			name = src.DocID
		}
		snippet := src.Chunk
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		fmt.Printf("%2d. [%.3f] %s: %s\n", i+1, src.Score, name, snippet)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(pretty.String())
}
