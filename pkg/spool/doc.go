// Package spool implements the time-bounded offline queue of messages a
// device could not receive live.
//
// Messages persist through a kv.Store keyed by (device key, message id) and
// expire after a fixed 7-day retention horizon via the store's own TTL
// mechanism. Because the store supports no prefix queries, the spool
// maintains an explicit per-device id index as its own side entry; the
// index is compacted on drain and pruned on removal.
//
// Drain returns pending messages in ascending creation order and is meant
// to run once per device reconnect. Remove acknowledges a single delivered
// message; missed removals are eventually cleaned up by TTL expiry.
package spool
