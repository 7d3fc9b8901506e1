package store

import "errors"

// Domain errors for the store package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, store.ErrKeyTooLong) {
//	    // derive a shorter key
//	}
var (
	// ErrInvalidNamespace is returned when the namespace is empty or exceeds
	// the length limit.
	ErrInvalidNamespace = errors.New("store: invalid namespace")

	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("store: key cannot be empty")

	// ErrKeyTooLong is returned when a key exceeds the length limit.
	ErrKeyTooLong = errors.New("store: key exceeds 15 characters")

	// ErrValueTooLarge is returned when a blob value exceeds the size cap.
	ErrValueTooLarge = errors.New("store: value too large")

	// ErrReadOnly is returned on write attempts against a read-only handle.
	ErrReadOnly = errors.New("store: opened read-only")

	// ErrClosed is returned when the store handle has been closed.
	ErrClosed = errors.New("store: closed")
)
