package domain

import (
	"errors"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoCredentials indicates no API keys are configured.
	// Callers should back off and retry rather than fail.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrDispatcherStopped indicates a task was submitted to, or abandoned by,
	// a dispatcher that is not running.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrTaskTimeout indicates a caller gave up waiting on a task.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrLLMUnavailable indicates the vision/language service is not configured.
	// Semantic and per-item strategies degrade to keyword-only search.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrIndexUnavailable indicates no index store is configured.
	ErrIndexUnavailable = errors.New("index unavailable")
)

// RateLimitError carries the server-provided retry delay for a 429 response.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	// RetryAfter is how long the server asked us to wait. Zero if unknown.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return "rate limited: retry after " + e.RetryAfter.String()
	}
	return "rate limited"
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
