package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDirectory_ExtractsKnownExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aspirin.txt", "Aspirin reduces fever.")
	writeFile(t, dir, "notes.md", "# Dosage\nTake with food.")
	writeFile(t, dir, "ignored.csv", "a,b,c")

	docs, err := New(nil).Directory(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	bySource := map[string]string{}
	for _, d := range docs {
		bySource[d.Source] = d.Text
	}
	assert.Equal(t, "Aspirin reduces fever.", bySource["aspirin.txt"])
	assert.Contains(t, bySource["notes.md"], "Dosage")
}

func TestDirectory_SkipsEmptyAndBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.txt", "   \n\t ")
	// Not a real PDF; extraction fails and the batch continues.
	writeFile(t, dir, "broken.pdf", "this is not a pdf")
	writeFile(t, dir, "good.txt", "Ibuprofen is an anti-inflammatory.")

	docs, err := New(nil).Directory(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "good.txt", docs[0].Source)
}

func TestDirectory_ProgressCounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one")
	writeFile(t, dir, "b.txt", "two")
	writeFile(t, dir, "c.txt", "three")

	var calls [][2]int
	_, err := New(nil).Directory(context.Background(), dir, func(processed, total int) {
		calls = append(calls, [2]int{processed, total})
	})
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Equal(t, [2]int{1, 3}, calls[0])
	assert.Equal(t, [2]int{3, 3}, calls[2])
}

func TestDirectory_MissingDir(t *testing.T) {
	_, err := New(nil).Directory(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestDirectory_EmptyDirYieldsNoDocuments(t *testing.T) {
	docs, err := New(nil).Directory(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFile_ExtractionErrorType(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", "not a pdf")

	_, err := New(nil).File(path)
	var ee *domain.ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, path, ee.Path)
}

func TestFile_SourceIsBaseName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "drugA.txt", "Aspirin reduces fever.")

	doc, err := New(nil).File(path)
	require.NoError(t, err)
	assert.Equal(t, "drugA.txt", doc.Source)
}
