// Package extract turns source files into plain-text documents for the
// ingestion pipeline. Extraction failures are isolated per file so a single
// unreadable document never aborts a batch.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
)

// Progress is invoked after each file with the number processed so far and
// the total number of candidate files.
type Progress func(processed, total int)

// knownExtensions are the file types the extractor handles.
var knownExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Extractor reads documents from the local filesystem.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Directory extracts every document with a known extension in dir. Files that
// fail to extract or yield no text are logged and skipped. The returned slice
// may be empty; that is not an error.
func (e *Extractor) Directory(ctx context.Context, dir string, progress Progress) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("extract: read dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if knownExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	docs := make([]domain.Document, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		doc, err := e.File(path)
		switch {
		case err != nil:
			e.logger.Warn("extract: skipping file", "path", path, "error", err)
		case strings.TrimSpace(doc.Text) == "":
			e.logger.Warn("extract: no text extracted", "path", path)
		default:
			docs = append(docs, doc)
			e.logger.Info("extract: processed", "path", path, "chars", len(doc.Text))
		}

		if progress != nil {
			progress(i+1, len(paths))
		}
	}
	return docs, nil
}

// File extracts a single document. The document's Source is the file's base
// name, matching the provenance recorded in the vector store.
func (e *Extractor) File(path string) (domain.Document, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDF(path)
	case ".txt", ".md":
		text, err = extractPlain(path)
	default:
		err = fmt.Errorf("unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return domain.Document{}, &domain.ExtractionError{Path: path, Err: err}
	}
	return domain.Document{Source: filepath.Base(path), Text: text}, nil
}

// extractPDF concatenates the text of every readable page. Pages that fail
// to decode are skipped; the parser panics on some malformed files, which is
// converted to an error here.
func extractPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
