package kv

import (
	"context"
	"time"
)

// Store is the storage collaborator the core persists through.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key. A ttl of zero means no expiry;
	// otherwise the entry expires after ttl and subsequent Gets
	// return ErrNotFound.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry under key. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error
}
