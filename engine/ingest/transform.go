package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
	"github.com/google/uuid"
)

const (
	// DefaultChunkSize is the max chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the target tail carried between adjacent chunks.
	DefaultChunkOverlap = 200
)

// separators are tried in order: paragraph, line, sentence, word, and
// finally a hard character cut for pathological runs with no boundaries at
// all.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// SplitText splits text into chunks of at most size characters, preferring
// to break on the coarsest boundary available and carrying roughly overlap
// characters of shared tail between adjacent chunks. Text that already fits
// in one chunk is returned unchanged. All lengths are measured in runes, so
// multi-byte text is never cut mid-character.
func SplitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	return merge(split(text, size, 0), size, overlap)
}

// split recursively breaks text into pieces no longer than size characters,
// descending to finer separators only for pieces that are still too long.
func split(text string, size, sepIdx int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	sep := separators[sepIdx]
	if sep == "" {
		return cutRunes(text, size)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= size {
			out = append(out, part)
			continue
		}
		out = append(out, split(part, size, sepIdx+1)...)
	}
	return out
}

// cutRunes hard-cuts text into pieces of size runes, always slicing on rune
// boundaries.
func cutRunes(text string, size int) []string {
	var out []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			out = append(out, text[start:i])
			start, count = i, 0
		}
		count++
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// merge greedily packs pieces into chunks of at most size characters. When
// a chunk fills up, the trailing pieces totalling at most overlap characters
// are carried into the next chunk; the tail is dropped if it would leave no
// room for the next piece.
func merge(pieces []string, size, overlap int) []string {
	var chunks []string
	var cur []string
	curLen := 0

	emit := func() {
		if c := strings.TrimSpace(strings.Join(cur, "")); c != "" {
			chunks = append(chunks, c)
		}
	}

	for _, p := range pieces {
		pLen := utf8.RuneCountInString(p)
		if curLen+pLen > size && curLen > 0 {
			emit()

			var tail []string
			tailLen := 0
			for i := len(cur) - 1; i >= 0; i-- {
				n := utf8.RuneCountInString(cur[i])
				if tailLen+n > overlap {
					break
				}
				tail = append([]string{cur[i]}, tail...)
				tailLen += n
			}
			cur, curLen = tail, tailLen

			if curLen+pLen > size {
				cur, curLen = nil, 0
			}
		}
		cur = append(cur, p)
		curLen += pLen
	}
	if curLen > 0 {
		emit()
	}
	return chunks
}

// ChunkDocuments splits each document into chunks carrying provenance.
// Chunk IDs are fresh UUIDs; Index restarts at zero per document.
func ChunkDocuments(docs []domain.Document, size, overlap int) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for i, text := range SplitText(doc.Text, size, overlap) {
			chunks = append(chunks, domain.Chunk{
				ID:     uuid.NewString(),
				Text:   text,
				Source: doc.Source,
				Index:  i,
			})
		}
	}
	return chunks
}
