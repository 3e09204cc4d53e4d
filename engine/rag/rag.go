// Package rag orchestrates the retrieval-augmented query pipeline: embed
// the question, search the semantic store, assemble a grounded prompt, and
// call the completion model. Answers always cite the source documents the
// context came from.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
	"github.com/MedQueryAI/medquery-mvp/engine/semantic"
	"github.com/MedQueryAI/medquery-mvp/pkg/together"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// User-facing messages for the degraded paths. The query flow never leaks
// raw errors to callers; it answers with one of these instead.
const (
	// NoContextMessage is returned when retrieval finds nothing relevant.
	NoContextMessage = "I couldn't find specific information related to your query in my medical knowledge base. Please consult a healthcare professional for accurate medical advice."
	// FallbackMessage is returned when the model produces no usable text.
	FallbackMessage = "I couldn't generate a response at this time. Please try again later."
	// ErrorMessage is returned when any pipeline step fails.
	ErrorMessage = "I encountered an error while processing your query. Please try again or rephrase your question."
)

const promptTemplate = `You are a helpful medical assistant with access to medical literature.
Answer the question based on the provided medical context.
If you cannot find the answer in the context, say so clearly and provide general medical information if possible.
Do not make up information or provide medical advice that's not supported by the context.

CONTEXT:
%s

QUESTION:
%s

ANSWER:
`

var queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "medquery_rag_queries_total",
	Help: "Queries answered, by outcome.",
}, []string{"outcome"})

// Embedder turns a query into an embedding vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SemanticSearcher abstracts vector search over the indexed corpus.
type SemanticSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int, namespace string) ([]semantic.SearchResult, error)
}

// Completer abstracts the completion model.
type Completer interface {
	Complete(ctx context.Context, req together.CompletionRequest) (*together.CompletionResponse, error)
}

// Options configures retrieval and decoding.
type Options struct {
	TopK              int
	Namespace         string
	Model             string
	MaxTokens         int
	Temperature       float64
	TopP              float64
	TopKSampling      int
	RepetitionPenalty float64
	SearchTimeout     time.Duration
}

// DefaultOptions returns the tuned decoding parameters for grounded
// medical answers.
func DefaultOptions() Options {
	return Options{
		TopK:              5,
		Model:             "mistralai/Mixtral-8x7B-Instruct-v0.1",
		MaxTokens:         1024,
		Temperature:       0.3,
		TopP:              0.9,
		TopKSampling:      50,
		RepetitionPenalty: 1.1,
		SearchTimeout:     5 * time.Second,
	}
}

// Context is the assembled retrieval result for one query.
type Context struct {
	// Text is the retrieved chunk texts joined by blank lines.
	Text string
	// Sources lists the distinct source documents in first-seen order.
	Sources []string
}

// Engine runs the query pipeline.
type Engine struct {
	embed  Embedder
	search SemanticSearcher
	model  Completer
	opts   Options
	logger *slog.Logger
}

// New creates an Engine.
func New(embed Embedder, search SemanticSearcher, model Completer, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embed: embed, search: search, model: model, opts: opts, logger: logger}
}

// Retrieve embeds the query and searches the store, assembling the hit
// texts and their distinct sources.
func (e *Engine) Retrieve(ctx context.Context, query string) (Context, error) {
	embedding, err := e.embed.EmbedQuery(ctx, query)
	if err != nil {
		return Context{}, fmt.Errorf("rag: embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	results, err := e.search.Search(searchCtx, embedding, e.opts.TopK, e.opts.Namespace)
	if err != nil {
		return Context{}, fmt.Errorf("rag: semantic search: %w", err)
	}
	e.logger.Info("rag: search done", "results", len(results))

	texts := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	var sources []string
	for _, r := range results {
		texts = append(texts, r.Text)
		if !seen[r.Source] {
			seen[r.Source] = true
			sources = append(sources, r.Source)
		}
	}

	return Context{Text: strings.Join(texts, "\n\n"), Sources: sources}, nil
}

// Generate calls the completion model with the grounded prompt. A response
// with no usable text yields FallbackMessage, not an error.
func (e *Engine) Generate(ctx context.Context, query string, retrieved Context) (string, error) {
	resp, err := e.model.Complete(ctx, together.CompletionRequest{
		Model:             e.opts.Model,
		Prompt:            fmt.Sprintf(promptTemplate, retrieved.Text, query),
		MaxTokens:         e.opts.MaxTokens,
		Temperature:       e.opts.Temperature,
		TopP:              e.opts.TopP,
		TopK:              e.opts.TopKSampling,
		RepetitionPenalty: e.opts.RepetitionPenalty,
		Stop:              []string{"QUESTION:", "CONTEXT:"},
	})
	if err != nil {
		return "", fmt.Errorf("rag: complete: %w", err)
	}

	if len(resp.Choices) == 0 {
		return FallbackMessage, nil
	}
	text := strings.TrimSpace(resp.Choices[0].Text)
	if text == "" {
		return FallbackMessage, nil
	}
	return text, nil
}

// Query answers a user question. It never returns an error: failures are
// logged and surfaced to the caller as ErrorMessage with no sources, and
// an empty retrieval short-circuits to NoContextMessage without calling
// the model.
func (e *Engine) Query(ctx context.Context, query string) domain.Answer {
	retrieved, err := e.Retrieve(ctx, query)
	if err != nil {
		e.logger.Error("rag: retrieval failed", "error", err)
		queriesTotal.WithLabelValues("error").Inc()
		return domain.Answer{Text: ErrorMessage, Sources: []string{}}
	}

	if strings.TrimSpace(retrieved.Text) == "" {
		e.logger.Info("rag: no context found")
		queriesTotal.WithLabelValues("no_context").Inc()
		return domain.Answer{Text: NoContextMessage, Sources: []string{}}
	}

	text, err := e.Generate(ctx, query, retrieved)
	if err != nil {
		e.logger.Error("rag: generation failed", "error", err)
		queriesTotal.WithLabelValues("error").Inc()
		return domain.Answer{Text: ErrorMessage, Sources: []string{}}
	}

	queriesTotal.WithLabelValues("ok").Inc()
	return domain.Answer{Text: text, Sources: retrieved.Sources}
}
