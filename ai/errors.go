package ai

import "errors"

var (
	// ErrInvalidConfig indicates an incomplete or inconsistent provider config.
	ErrInvalidConfig = errors.New("invalid embedding config")

	// ErrUnknownProvider indicates a provider name with no registered factory.
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrEmbeddingCount indicates a provider returned a different number of
	// vectors than texts it was given.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)
