package credstore

import (
	"context"
	"errors"
)

// ErrEmpty is returned when a source exists but holds no usable value.
var ErrEmpty = errors.New("empty secret")

// Store reads a secret from a single source.
type Store interface {
	// Read returns the secret with surrounding whitespace removed. Returns
	// an error wrapping ErrEmpty if the source holds only whitespace.
	Read(ctx context.Context) (string, error)
}
