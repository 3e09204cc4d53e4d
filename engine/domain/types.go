// Package domain defines the core types shared by the ingestion and query
// pipelines, along with the error taxonomy and the validation gates at
// pipeline entry points.
package domain

// Document is a source document after text extraction. It lives only between
// extraction and chunking and is never persisted.
type Document struct {
	Source string `json:"source"` // base name of the originating file
	Text   string `json:"text"`   // extracted plain text, possibly empty
}

// Chunk is a bounded contiguous slice of a document's text, the unit of
// indexing and retrieval. IDs are generated fresh on every ingestion run;
// chunks are never mutated after creation.
type Chunk struct {
	ID     string
	Text   string
	Source string
	Index  int // zero-based, monotonic within the source document
}

// Answer is the terminal output of the query pipeline. Sources carries the
// distinct source identifiers backing the answer, in first-seen order.
type Answer struct {
	Text    string   `json:"response"`
	Sources []string `json:"sources"`
}
