// Package dispatch orchestrates push delivery: it resolves device records,
// selects the channel per device type, builds the channel payload, and
// aggregates per-device outcomes for batch requests.
//
// iOS devices receive an APNs notification; Android devices receive a live
// frame through the connection hub, encrypted with the device's registered
// public key, falling back to the offline spool when no session is
// connected - queueing is an accepted outcome, not a failure.
//
// Batch requests fan out concurrently and join: every member runs to
// completion, a member's failure is captured as its own result entry and
// never aborts or affects siblings.
package dispatch
