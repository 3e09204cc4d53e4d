package ingest

import "github.com/MedQueryAI/medquery-mvp/engine/domain"

// Stats summarizes a completed ingestion run.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// chunkedBatch carries the chunked corpus between the chunk and embed stages.
type chunkedBatch struct {
	Documents int
	Chunks    []domain.Chunk
}

// embeddedBatch pairs chunks with their embeddings, index-aligned.
type embeddedBatch struct {
	chunkedBatch
	Embeddings [][]float32
}
