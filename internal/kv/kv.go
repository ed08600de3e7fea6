// Package kv defines the persistent key-value contract the store is built on.
package kv

import "context"

// Store is an async byte store keyed by string. Values are opaque to it.
type Store interface {
	// Get returns the value for key. ok is false when nothing is stored
	// under key; that is not an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Clear erases every key.
	Clear(ctx context.Context) error
}
