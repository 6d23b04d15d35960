// Package kv provides string key-value storage backends.
package kv

import "context"

// Store is persistent string storage addressed by key. Implementations are
// safe for concurrent use.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
