// Package ingest runs the document ingestion pipeline: extract text from a
// directory of source files, chunk it, embed the chunks, and upsert the
// vectors into the semantic store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
	"github.com/MedQueryAI/medquery-mvp/engine/extract"
	"github.com/MedQueryAI/medquery-mvp/engine/semantic"
	"github.com/MedQueryAI/medquery-mvp/engine/state"
	"github.com/MedQueryAI/medquery-mvp/pkg/fn"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// IngestSubject is the NATS subject for ingestion requests.
	IngestSubject = "engine.ingest"
	// DLQSubject is the dead letter queue subject for failed requests.
	DLQSubject = "engine.ingest.dlq"
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 100
	// UpsertBatchSize is the max records per vector store upsert.
	UpsertBatchSize = 100
)

var (
	documentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medquery_ingest_documents_total",
		Help: "Documents processed by completed ingestion runs.",
	})
	chunksUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medquery_ingest_chunks_upserted_total",
		Help: "Chunk vectors written to the semantic store.",
	})
)

// DocumentSource extracts documents from a directory.
type DocumentSource interface {
	Directory(ctx context.Context, dir string, progress extract.Progress) ([]domain.Document, error)
}

// Embedder turns chunk texts into embedding vectors, index-aligned with
// its input.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter is the slice of the semantic store the pipeline writes to.
type VectorWriter interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Options tunes chunking and storage.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// Namespace, when set, is stamped on every record's payload and lets
	// queries filter to this corpus.
	Namespace string
}

func (o Options) withDefaults() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
		if o.ChunkOverlap == 0 {
			o.ChunkOverlap = DefaultChunkOverlap
		}
	}
	return o
}

// Pipeline wires the ingestion stages to their dependencies.
type Pipeline struct {
	source DocumentSource
	embed  Embedder
	store  VectorWriter
	opts   Options
	log    *slog.Logger
}

// New validates options and constructs a Pipeline.
func New(source DocumentSource, embedder Embedder, store VectorWriter, opts Options, log *slog.Logger) (*Pipeline, error) {
	opts = opts.withDefaults()
	if err := domain.ValidateChunking(opts.ChunkSize, opts.ChunkOverlap); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{source: source, embed: embedder, store: store, opts: opts, log: log}, nil
}

// ProcessAndIndex runs extract → chunk → embed → store over the given
// directory. A directory that yields no documents is not an error; it
// returns zero Stats. A failed upsert batch aborts the run with a
// domain.UploadError carrying the number of records already written.
func (p *Pipeline) ProcessAndIndex(ctx context.Context, dir string) (Stats, error) {
	run := fn.Then(
		fn.TracedStage("ingest.extract", p.extractStage),
		fn.Then(
			fn.TracedStage("ingest.chunk", p.chunkStage),
			fn.Then(
				fn.TracedStage("ingest.embed", p.embedStage),
				fn.TracedStage("ingest.store", p.storeStage),
			),
		),
	)
	return run(ctx, dir).Unwrap()
}

func (p *Pipeline) extractStage(ctx context.Context, dir string) fn.Result[[]domain.Document] {
	docs, err := p.source.Directory(ctx, dir, func(processed, total int) {
		p.log.Info("ingest: extracting", "processed", processed, "total", total)
	})
	return fn.FromPair(docs, err)
}

func (p *Pipeline) chunkStage(_ context.Context, docs []domain.Document) fn.Result[chunkedBatch] {
	chunks := ChunkDocuments(docs, p.opts.ChunkSize, p.opts.ChunkOverlap)
	p.log.Info("ingest: chunked", "documents", len(docs), "chunks", len(chunks))
	return fn.Ok(chunkedBatch{Documents: len(docs), Chunks: chunks})
}

func (p *Pipeline) embedStage(ctx context.Context, batch chunkedBatch) fn.Result[embeddedBatch] {
	embeddings := make([][]float32, len(batch.Chunks))

	for i := 0; i < len(batch.Chunks); i += EmbedBatchSize {
		end := i + EmbedBatchSize
		if end > len(batch.Chunks) {
			end = len(batch.Chunks)
		}

		texts := make([]string, end-i)
		for j, c := range batch.Chunks[i:end] {
			texts[j] = c.Text
		}

		vectors, err := p.embed.EmbedDocuments(ctx, texts)
		if err != nil {
			return fn.Err[embeddedBatch](fmt.Errorf("ingest: embed chunks %d-%d: %w", i, end, err))
		}
		copy(embeddings[i:end], vectors)
	}

	return fn.Ok(embeddedBatch{chunkedBatch: batch, Embeddings: embeddings})
}

func (p *Pipeline) storeStage(ctx context.Context, batch embeddedBatch) fn.Result[Stats] {
	stats := Stats{Documents: batch.Documents, Chunks: len(batch.Chunks)}
	if len(batch.Chunks) == 0 {
		p.log.Info("ingest: nothing to index")
		return fn.Ok(stats)
	}

	if err := p.store.EnsureCollection(ctx, len(batch.Embeddings[0])); err != nil {
		return fn.Err[Stats](fmt.Errorf("ingest: ensure collection: %w", err))
	}

	uploaded := 0
	for i := 0; i < len(batch.Chunks); i += UpsertBatchSize {
		end := i + UpsertBatchSize
		if end > len(batch.Chunks) {
			end = len(batch.Chunks)
		}

		records := make([]semantic.VectorRecord, end-i)
		for j, c := range batch.Chunks[i:end] {
			payload := map[string]any{
				"text":        c.Text,
				"source":      c.Source,
				"chunk_index": c.Index,
			}
			if p.opts.Namespace != "" {
				payload["namespace"] = p.opts.Namespace
			}
			records[j] = semantic.VectorRecord{
				ID:        c.ID,
				Embedding: batch.Embeddings[i+j],
				Payload:   payload,
			}
		}

		if err := p.store.Upsert(ctx, records); err != nil {
			return fn.Err[Stats](&domain.UploadError{Uploaded: uploaded, Err: err})
		}
		uploaded += len(records)
		chunksUpserted.Add(float64(len(records)))
		p.log.Info("ingest: upserted batch", "uploaded", uploaded, "total", len(batch.Chunks))
	}

	documentsIngested.Add(float64(batch.Documents))
	return fn.Ok(stats)
}

// Request asks the consumer to ingest a directory.
type Request struct {
	Directory string `json:"directory"`
}

// dlqMessage is published to the DLQ when a request fails. Failed runs are
// not replayed automatically: a partial upload means some records are
// already written, and a blind re-run would duplicate them.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
}

// PublishRequest enqueues an ingestion request.
func PublishRequest(nc *nats.Conn, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("ingest: marshal request: %w", err)
	}
	if err := nc.Publish(IngestSubject, data); err != nil {
		return fmt.Errorf("ingest: publish request: %w", err)
	}
	return nil
}

// dlqPublisher is the slice of the NATS connection the consumer needs for
// dead-lettering.
type dlqPublisher interface {
	Publish(subject string, data []byte) error
}

// StartConsumer subscribes to IngestSubject and runs one pipeline job per
// request. Jobs run on their own goroutine, scoped to ctx, so the
// subscription stays responsive; a request arriving while a job is still
// running is rejected and logged.
func StartConsumer(ctx context.Context, nc *nats.Conn, p *Pipeline, tracker *state.JobTracker) (*nats.Subscription, error) {
	return nc.Subscribe(IngestSubject, requestHandler(ctx, nc, p, tracker))
}

func requestHandler(ctx context.Context, dlq dlqPublisher, p *Pipeline, tracker *state.JobTracker) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			p.log.Error("ingest: unmarshal request", "error", err)
			return
		}

		if err := tracker.Start(); err != nil {
			p.log.Warn("ingest: request rejected", "error", err, "directory", req.Directory)
			return
		}

		go func() {
			stats, err := p.ProcessAndIndex(ctx, req.Directory)
			if err != nil {
				tracker.Fail(err)
				p.log.Error("ingest: job failed", "error", err, "directory", req.Directory)

				data, _ := json.Marshal(dlqMessage{Request: req, Error: err.Error()})
				if perr := dlq.Publish(DLQSubject, data); perr != nil {
					p.log.Error("ingest: DLQ publish failed", "error", perr)
				}
				return
			}

			tracker.Finish(stats.Documents, stats.Chunks)
			p.log.Info("ingest: job complete",
				"directory", req.Directory,
				"documents", stats.Documents,
				"chunks", stats.Chunks,
			)
		}()
	}
}
