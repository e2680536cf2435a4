package payload

import "errors"

var (
	// ErrNotFound is returned when a file path does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidInput is returned for unusable inputs: a path that is not a
	// regular file, an inline file without a name, or a request with neither
	// text nor files.
	ErrInvalidInput = errors.New("invalid input")
)
