package pipeline

import "errors"

var (
	// ErrInvalidChunkConfig indicates a chunk size or overlap that cannot produce windows.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")

	// ErrUnknownPolicy indicates an unsupported chunk policy name.
	ErrUnknownPolicy = errors.New("unknown chunk policy")

	// ErrMissingText indicates a record without text reached a stage that needs it.
	ErrMissingText = errors.New("record has no text")

	// ErrIDStrategy indicates that not exactly one id strategy was selected.
	ErrIDStrategy = errors.New("exactly one id strategy must be selected")

	// ErrUnknownHashAlg indicates an unsupported document hash algorithm.
	ErrUnknownHashAlg = errors.New("unknown hash algorithm")

	// ErrInvalidTemplate indicates an expression that does not parse or render.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrEmptyMetaEdit indicates a metadata edit with nothing to add or remove.
	ErrEmptyMetaEdit = errors.New("metadata edit needs at least one key to add or remove")

	// ErrInvalidKeyValue indicates a key=value pair that does not parse.
	ErrInvalidKeyValue = errors.New("invalid key=value pair")

	// ErrEmbedderRequired indicates an embed stage built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")
)
