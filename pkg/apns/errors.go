package apns

import "errors"

var (
	// ErrMissingCredentials is returned when the token source lacks a key id, team id, or signing key.
	ErrMissingCredentials = errors.New("apns: missing key id, team id, or private key")

	// ErrInvalidAuthKey is returned when the .p8 signing key cannot be parsed.
	ErrInvalidAuthKey = errors.New("apns: invalid provider auth key")

	// ErrEmptyDeviceToken is returned when Send is called without a device token.
	ErrEmptyDeviceToken = errors.New("apns: device token is empty")
)
