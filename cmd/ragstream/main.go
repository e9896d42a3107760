package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/ragstream/internal/adapters/embedding"
	"github.com/0xcro3dile/ragstream/internal/adapters/extractor"
	"github.com/0xcro3dile/ragstream/internal/adapters/filewatcher"
	"github.com/0xcro3dile/ragstream/internal/adapters/llm"
	"github.com/0xcro3dile/ragstream/internal/adapters/splitter"
	"github.com/0xcro3dile/ragstream/internal/adapters/vectordb"
	"github.com/0xcro3dile/ragstream/internal/config"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/ragstream/internal/infrastructure/http"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exiting", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) error {
	index, err := openIndex(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s index: %w", cfg.Store.Backend, err)
	}

	embedder := embedding.NewOllamaAdapter(cfg.Ollama.BaseURL, cfg.Ollama.EmbeddingModel, cfg.Ollama.EmbedConcurrency, log)
	store, err := vectordb.NewStore(ctx, index, embedder, cfg.Retrieval.NResults, cfg.Retrieval.DistanceThreshold, log)
	if err != nil {
		index.Close()
		return err
	}
	defer store.Close()

	chat := llm.NewOllamaChat(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.GenerationTimeout, log)

	var remote *extractor.Remote
	if cfg.ConverterURL != "" {
		remote = extractor.NewRemote(cfg.ConverterURL, nil)
	}
	docs := extractor.NewMulti(remote, log)

	ingestUC := usecases.NewIngestUseCase(
		docs,
		splitter.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		store,
		usecases.ChunkingConfig{ChunkSize: cfg.Chunking.ChunkSize, ChunkOverlap: cfg.Chunking.ChunkOverlap},
		log,
	)
	queryUC := usecases.NewQueryUseCase(store, chat, cfg.Retrieval.NResults, cfg.Retrieval.DistanceThreshold, log)

	opts := httpserver.Options{
		Addr:         cfg.HTTPAddr,
		WriteTimeout: cfg.Ollama.GenerationTimeout + time.Minute,
	}
	if remote != nil {
		opts.Converter = remote
	}
	server := httpserver.NewServer(queryUC, ingestUC, store, log, opts)

	log.Info("ragstream ready",
		"backend", cfg.Store.Backend,
		"model", cfg.Ollama.Model,
		"embedding_model", cfg.Ollama.EmbeddingModel,
		"chunk_size", cfg.Chunking.ChunkSize,
		"chunk_overlap", cfg.Chunking.ChunkOverlap,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(ctx) })
	if cfg.WatchDir != "" {
		g.Go(func() error {
			if err := watchFolder(ctx, cfg.WatchDir, docs.SupportedExtensions(), ingestUC, log); err != nil {
				log.Error("folder sync stopped", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func openIndex(ctx context.Context, cfg config.StoreConfig) (vectordb.Index, error) {
	switch cfg.Backend {
	case "memory":
		return vectordb.NewMemoryIndex(), nil
	case "redis":
		return vectordb.NewRedisIndex(ctx, vectordb.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return vectordb.NewSQLiteIndex(cfg.DataDir)
	}
}

// watchFolder indexes files already in dir, then follows changes.
func watchFolder(ctx context.Context, dir string, exts []string, ingest *usecases.IngestUseCase, log *logger.Logger) error {
	log = log.With("component", "folder_sync", "dir", dir)

	w, err := filewatcher.NewFSNotifyWatcher(exts, log)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Stop()

	existing, err := w.Scan(dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}
	for _, path := range existing {
		reindex(ctx, path, ingest, log)
	}

	events, err := w.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	for ev := range events {
		log.Debug("file event", "path", ev.Path, "op", ev.Operation.String())
		switch ev.Operation {
		case ports.FileCreated, ports.FileModified:
			reindex(ctx, ev.Path, ingest, log)
		case ports.FileDeleted:
			if err := ingest.RemoveFile(ctx, filepath.Base(ev.Path)); err != nil {
				log.Error("remove failed", "path", ev.Path, "error", err)
			}
		}
	}
	return nil
}

func reindex(ctx context.Context, path string, ingest *usecases.IngestUseCase, log *logger.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("read failed", "path", path, "error", err)
		return
	}
	if _, err := ingest.ReindexFile(ctx, path, data); err != nil {
		log.Error("index failed", "path", path, "error", err)
	}
}
