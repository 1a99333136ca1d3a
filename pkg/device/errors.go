package device

import "errors"

var (
	// ErrNotFound is returned when no record exists for a device key.
	ErrNotFound = errors.New("device not found")

	// ErrEmptyDeviceKey is returned when an operation requires a device key and none is given.
	ErrEmptyDeviceKey = errors.New("device key is empty")

	// ErrEmptyDeviceToken is returned when an iOS registration carries no APNs token.
	ErrEmptyDeviceToken = errors.New("device token is empty")

	// ErrInvalidDeviceToken is returned when an APNs token exceeds the maximum length.
	ErrInvalidDeviceToken = errors.New("device token is invalid")

	// ErrMissingPublicKey is returned when an Android registration carries no public key.
	ErrMissingPublicKey = errors.New("public_key is required for android devices")

	// ErrRegistrationDisabled is returned when new-device registration is refused by policy.
	ErrRegistrationDisabled = errors.New("device registration failed: register disabled")
)
