// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist (or is not published).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or unknown API key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the caller must wait before retrying.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., bot name taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed client input.
	ErrValidation = errors.New("validation")

	// ErrCompilation indicates the external compiler rejected the source.
	ErrCompilation = errors.New("compilation failed")

	// ErrSequenceExhausted indicates no paper sequence numbers are left for the month.
	ErrSequenceExhausted = errors.New("paper sequence exhausted")
)

// ValidationError names the offending field. Invalid lists rejected values
// when the field is a collection (e.g. unknown categories).
type ValidationError struct {
	Field   string
	Message string
	Invalid []string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalidf builds a ValidationError for field with a formatted message.
func Invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimitError carries how long the caller has to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Minutes returns the wait rounded up to whole minutes (at least 1).
func (e *RateLimitError) Minutes() int { return ceilUnits(e.RetryAfter, time.Minute) }

// Hours returns the wait rounded up to whole hours (at least 1).
func (e *RateLimitError) Hours() int { return ceilUnits(e.RetryAfter, time.Hour) }

func ceilUnits(d, unit time.Duration) int {
	n := int(math.Ceil(float64(d) / float64(unit)))
	if n < 1 {
		return 1
	}
	return n
}

// CompileError carries the compiler's diagnostic verbatim.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return "compilation failed: " + e.Message }

// Unwrap makes errors.Is(err, ErrCompilation) hold.
func (e *CompileError) Unwrap() error { return ErrCompilation }
