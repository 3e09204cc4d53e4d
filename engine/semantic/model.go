package semantic

// SearchResult is a single nearest-neighbor hit. Score follows the
// collection's distance metric; results arrive in descending relevance order.
type SearchResult struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
}

// VectorRecord is a single point to upsert. Payload keys used by this system:
// text, source, chunk_index, namespace.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}
