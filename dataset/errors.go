package dataset

import "errors"

var (
	// ErrUnsupportedScheme indicates a dataset URI that is neither file nor s3.
	ErrUnsupportedScheme = errors.New("unsupported dataset scheme")

	// ErrInvalidURI indicates a malformed dataset URI or query value.
	ErrInvalidURI = errors.New("invalid dataset uri")

	// ErrNotFound indicates a dataset split that does not exist.
	ErrNotFound = errors.New("dataset not found")

	// ErrInvalidRange indicates a slice outside the dataset.
	ErrInvalidRange = errors.New("invalid row range")
)
