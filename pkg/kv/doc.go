// Package kv defines the key-value storage contract the push relay core
// persists through, plus a Redis-backed implementation and an in-memory
// implementation for development and testing.
//
// The contract is deliberately narrow: get, put with optional TTL, delete.
// No range or prefix queries are assumed; callers that need an index over
// the store maintain it themselves as an explicit side entry.
//
// Basic usage:
//
//	client, err := kv.Connect(ctx, cfg)
//	if err != nil {
//		// Handle error
//	}
//	store := kv.NewRedisStore(client)
//
//	err = store.Put(ctx, "device_abc", payload, 0)
//	value, err := store.Get(ctx, "device_abc")
package kv
