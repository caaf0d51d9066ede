package stream

import "errors"

var (
	// ErrLineTooLong indicates an input line above MaxLineSize.
	ErrLineTooLong = errors.New("line exceeds maximum size")

	// ErrNotObject indicates an input line that is not a JSON object.
	ErrNotObject = errors.New("line is not a JSON object")
)
