package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a series is shorter than the window a computation needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelUnavailable is returned when no prediction model is loaded.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoValidData is returned when a fetched batch is empty or its closes sum to zero.
	ErrNoValidData = errors.New("no valid data")
)

// UpstreamFetchError wraps a failed or timed out fetch for a single symbol.
type UpstreamFetchError struct {
	Symbol string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream fetch failed for %s: %v", e.Symbol, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// FeatureLengthError reports an encoded feature vector whose length does not
// match the model's declared input shape.
type FeatureLengthError struct {
	Got  int
	Want int
}

func (e *FeatureLengthError) Error() string {
	return fmt.Sprintf("feature length mismatch: got %d, want %d", e.Got, e.Want)
}
