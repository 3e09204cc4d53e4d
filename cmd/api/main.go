// Package main implements the MedQuery API server. The engine initializes
// in the background so the server can report progress on /api/status while
// the vector store connection comes up.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MedQueryAI/medquery-mvp/engine/config"
	"github.com/MedQueryAI/medquery-mvp/engine/extract"
	"github.com/MedQueryAI/medquery-mvp/engine/ingest"
	"github.com/MedQueryAI/medquery-mvp/engine/rag"
	"github.com/MedQueryAI/medquery-mvp/engine/semantic"
	"github.com/MedQueryAI/medquery-mvp/pkg/huggingface"
	"github.com/MedQueryAI/medquery-mvp/pkg/mid"
	"github.com/MedQueryAI/medquery-mvp/pkg/together"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := newServer(logger, cfg.DataDir)
	go initEngine(ctx, cfg, logger, srv)

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("medquery-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// initEngine builds the query and ingestion engines and flips the lifecycle
// handle. Any failure is terminal: /api/status reports it until restart.
func initEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, srv *server) {
	srv.handle.Initializing()

	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		srv.handle.Fail(err)
		logger.Error("init: qdrant connect", "err", err)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		srv.handle.Fail(err)
		logger.Error("init: qdrant ping", "err", err)
		return
	}

	embedder := huggingface.NewClient(cfg.HFBaseURL, cfg.EmbeddingModel, cfg.HFToken)
	model := together.NewClient(cfg.TogetherBaseURL, cfg.TogetherKey)

	ragOpts := rag.DefaultOptions()
	ragOpts.TopK = cfg.TopK
	ragOpts.Model = cfg.Model
	ragOpts.Namespace = cfg.Namespace
	engine := rag.New(embedder, store, model, ragOpts, logger)

	pipeline, err := ingest.New(extract.New(logger), embedder, store, ingest.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Namespace:    cfg.Namespace,
	}, logger)
	if err != nil {
		srv.handle.Fail(err)
		logger.Error("init: ingest pipeline", "err", err)
		return
	}

	srv.setEngines(engine, pipeline)
	srv.handle.Ready()
	logger.Info("engine initialized",
		"collection", cfg.Collection,
		"embedding_model", cfg.EmbeddingModel,
		"model", cfg.Model,
	)
}
