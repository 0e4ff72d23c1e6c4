// Package storage defines the key-value port the record store and goal
// tracker persist through. Values are opaque serialized blobs.
package storage

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyRecords = "deliveryRecords"
	KeyGoal    = "monthlyGoal"
)

// ErrInvalidKey is returned for keys a backend cannot store.
var ErrInvalidKey = errors.New("invalid storage key")

type (
	// KV stores whole blobs by key. Set replaces the previous value; the last
	// write wins.
	KV interface {
		// Get returns the value and whether the key exists.
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key, value string) error
	}

	// Watcher is implemented by backends that can report writes made by other
	// processes.
	Watcher interface {
		// Watch calls onChange with the key of every externally modified blob
		// until ctx is done.
		Watch(ctx context.Context, onChange func(key string)) error
	}
)
