// Package metadata is a key/value table for opaque blobs such as sealed
// ledger counters and key-derivation salts.
package metadata

import "context"

type Repository interface {
	// Get returns the value stored under key; found is false when there is none.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// SetIfAbsent stores value only when key is free and reports whether it did.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
