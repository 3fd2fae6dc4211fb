package content

import "errors"

var (
	// ErrNotFound: the course or block does not exist or was never published.
	ErrNotFound = errors.New("content: not found")
	// ErrUnavailable: the backing store failed or the deadline expired.
	ErrUnavailable = errors.New("content: store unavailable")
)
