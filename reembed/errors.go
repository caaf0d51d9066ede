package reembed

import "errors"

var (
	// ErrInvalidBatchSize is returned when the page size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrNoEmbedder is returned when no embedder is configured.
	ErrNoEmbedder = errors.New("an embedder is required")
)
