package transfer

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// newPool creates a blocking pool of size workers; Submit waits for a free
// worker, which bounds the number of in-flight batches.
func newPool(size int) (*ants.Pool, error) {
	if size < 1 {
		return nil, ErrInvalidMaxThreads
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return pool, nil
}
