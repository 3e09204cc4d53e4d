package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuery    = errors.New("empty query")
	ErrQueryTooShort = errors.New("query too short")
	ErrBadChunking   = errors.New("invalid chunking parameters")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ExtractionError reports a single source file that could not be read or
// yielded no text. Ingestion logs it and continues with the rest of the batch.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UploadError reports an aborted batch upload. Uploaded is the number of
// records written before the failing batch; the remainder is not retried.
type UploadError struct {
	Uploaded int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload aborted after %d records: %v", e.Uploaded, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
