// Package hub tracks the live duplex session of each connected Android
// device and mediates immediate delivery.
//
// At most one live session exists per device key: registering a new session
// for a key forcibly closes and replaces the prior one. Session state is
// process-local and lost on restart; reconnecting devices re-register.
// Immediately after registration the hub drains the device's offline spool
// and pushes every pending message, formatted identically to a live push.
//
// The hub is transport-agnostic: any duplex channel implementing Conn can
// back a session. Every frame on the wire carries {type, id, timestamp,
// data}; inbound ping frames are answered with pong, inbound ack frames
// trigger removal of the acknowledged spool entry.
package hub
