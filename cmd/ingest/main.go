// Command ingest is the queue worker: it consumes ingestion requests from
// NATS and runs each one through the document pipeline into Qdrant. Failed
// requests land on the dead letter subject for inspection.
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
	"github.com/MedQueryAI/medquery-mvp/engine/semantic"
	"github.com/MedQueryAI/medquery-mvp/engine/state"
	"github.com/MedQueryAI/medquery-mvp/pkg/fn"
	"github.com/MedQueryAI/medquery-mvp/pkg/huggingface"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsAddr = ":9091"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return err
	}
	defer store.Close()

	// Qdrant and NATS may still be coming up when the worker starts.
	ping := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("qdrant not ready", "err", err)
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if _, err := ping.Unwrap(); err != nil {
		return err
	}
	logger.Info("connected to Qdrant", "collection", cfg.Collection)

	conn := fn.Retry(ctx, fn.DefaultRetry, func(context.Context) fn.Result[*nats.Conn] {
		return fn.FromPair(nats.Connect(cfg.NATSURL))
	})
	nc, err := conn.Unwrap()
	if err != nil {
		return err
	}
	defer nc.Drain()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	embedder := huggingface.NewClient(cfg.HFBaseURL, cfg.EmbeddingModel, cfg.HFToken)

	pipeline, err := ingest.New(extract.New(logger), embedder, store, ingest.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Namespace:    cfg.Namespace,
	}, logger)
	if err != nil {
		return err
	}

	tracker := state.NewJobTracker()
	sub, err := ingest.StartConsumer(ctx, nc, pipeline, tracker)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	go func() {
		logger.Info("metrics server starting", "addr", metricsAddr)
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	logger.Info("worker ready", "subject", ingest.IngestSubject)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
