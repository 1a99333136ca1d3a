package envelope

import "errors"

var (
	// ErrInvalidPublicKey is returned when the PEM block cannot be decoded or parsed.
	ErrInvalidPublicKey = errors.New("envelope: invalid public key")

	// ErrNotRSAPublicKey is returned when the PEM block holds a non-RSA key.
	ErrNotRSAPublicKey = errors.New("envelope: public key is not an RSA key")

	// ErrEncryptionFailed is returned when key wrapping or sealing fails.
	ErrEncryptionFailed = errors.New("envelope: encryption failed")
)
