package spool

import "errors"

var (
	// ErrEmptyDeviceKey is returned when a message carries no owning device key.
	ErrEmptyDeviceKey = errors.New("spool: device key is empty")

	// ErrEmptyMessageID is returned when a message carries no id.
	ErrEmptyMessageID = errors.New("spool: message id is empty")

	// ErrAmbiguousPayload is returned when a message carries both plaintext data and ciphertext.
	ErrAmbiguousPayload = errors.New("spool: message data and encrypted payload are mutually exclusive")
)
