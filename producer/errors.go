package producer

import "errors"

var (
	// ErrMissingColumn indicates a configured column that the CSV header lacks.
	ErrMissingColumn = errors.New("column not found in csv header")

	// ErrEmptyCSV indicates a CSV file without a header row.
	ErrEmptyCSV = errors.New("csv has no header row")

	// ErrUnsupportedURL indicates a URL that is not http or https.
	ErrUnsupportedURL = errors.New("only http and https urls can be loaded")

	// ErrFetch indicates a page that could not be retrieved.
	ErrFetch = errors.New("fetch failed")

	// ErrInvalidQdrantURI indicates a Qdrant source missing its collection
	// or document field, or carrying a malformed query value.
	ErrInvalidQdrantURI = errors.New("invalid qdrant uri")
)
