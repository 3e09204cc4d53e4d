// Command index runs a one-shot ingestion of a document directory into
// Qdrant. Environment configuration provides the defaults; flags override.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MedQueryAI/medquery-mvp/engine/config"
	"github.com/MedQueryAI/medquery-mvp/engine/domain"
	"github.com/MedQueryAI/medquery-mvp/engine/extract"
	"github.com/MedQueryAI/medquery-mvp/engine/ingest"
	"github.com/MedQueryAI/medquery-mvp/engine/semantic"
	"github.com/MedQueryAI/medquery-mvp/pkg/huggingface"
)

func main() {
	cfg := config.Load()

	var (
		dir          = flag.String("dir", cfg.DataDir, "directory of documents to index")
		qdrantAddr   = flag.String("qdrant", cfg.QdrantURL, "Qdrant gRPC address")
		collection   = flag.String("collection", cfg.Collection, "Qdrant collection name")
		namespace    = flag.String("namespace", cfg.Namespace, "namespace stamped on record payloads")
		chunkSize    = flag.Int("chunk-size", cfg.ChunkSize, "max chunk length in characters")
		chunkOverlap = flag.Int("chunk-overlap", cfg.ChunkOverlap, "overlap between adjacent chunks")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder := huggingface.NewClient(cfg.HFBaseURL, cfg.EmbeddingModel, cfg.HFToken)

	pipeline, err := ingest.New(extract.New(logger), embedder, store, ingest.Options{
		ChunkSize:    *chunkSize,
		ChunkOverlap: *chunkOverlap,
		Namespace:    *namespace,
	}, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "err", err)
		os.Exit(1)
	}

	stats, err := pipeline.ProcessAndIndex(ctx, *dir)
	if err != nil {
		var upErr *domain.UploadError
		if errors.As(err, &upErr) {
			logger.Error("indexing aborted mid-upload",
				"uploaded", upErr.Uploaded, "err", upErr.Err)
		} else {
			logger.Error("indexing failed", "err", err)
		}
		os.Exit(1)
	}

	logger.Info("index complete",
		"directory", *dir,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
	)
}
