package kv

import "errors"

var (
	// ErrNotFound is returned when a key is absent from the store.
	ErrNotFound = errors.New("kv: key not found")

	// ErrFailedToParseConnString is returned when the Redis connection URL is invalid.
	ErrFailedToParseConnString = errors.New("kv: failed to parse redis connection string")

	// ErrNotReady is returned when the store does not become reachable within the retry budget.
	ErrNotReady = errors.New("kv: redis did not become ready within the given time period")

	// ErrHealthcheckFailed is returned when the store fails a health probe.
	ErrHealthcheckFailed = errors.New("kv: healthcheck failed")
)
