package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const minQueryLength = 3

// ValidateQuery checks a user query before it enters the query pipeline.
func ValidateQuery(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NewValidationError("query", text, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		return NewValidationError("query", trimmed, ErrQueryTooShort)
	}
	return nil
}

// ValidateChunking checks chunker parameters: size must be positive and
// overlap must be non-negative and strictly smaller than size.
func ValidateChunking(size, overlap int) error {
	if size <= 0 || overlap < 0 || overlap >= size {
		return NewValidationError("chunking",
			fmt.Sprintf("size=%d overlap=%d", size, overlap), ErrBadChunking)
	}
	return nil
}
