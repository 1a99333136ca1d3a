package hub

import "errors"

var (
	// ErrEmptyDeviceKey is returned when a session is registered without a device key.
	ErrEmptyDeviceKey = errors.New("hub: device key is empty")

	// ErrNilConn is returned when a session is registered without a connection.
	ErrNilConn = errors.New("hub: connection is nil")

	// ErrSessionClosed is returned when writing to a session that has transitioned to closed.
	ErrSessionClosed = errors.New("hub: session is closed")

	// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
	ErrMalformedFrame = errors.New("hub: malformed frame")
)
