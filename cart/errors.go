package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by mutations issued before Initialize finished.
	ErrNotReady = errors.New("cart: store used before Initialize completed")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("cart: store is closed")
	// ErrNoStore is returned by FromContext when no store is attached.
	ErrNoStore = errors.New("cart: no store in context")
)

// PersistError reports a snapshot that could not be written. The in-memory
// cart has already moved on and is not rolled back.
type PersistError struct {
	Version uint64
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("cart: persist snapshot v%d: %v", e.Version, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
