// Package apns is the boundary to Apple's push delivery service: the
// payload and header model for a remote notification, a thin HTTP/2 client,
// and an ES256 provider-token source with KV-backed caching.
//
// The relay core only defines what is sent and how the response status is
// interpreted - 200 is success, 410 (or 400 with a BadDeviceToken reason)
// means the token is permanently invalid, anything else is a generic
// upstream failure. Retry policy, if any, belongs to the caller's client
// implementation, not here.
package apns
