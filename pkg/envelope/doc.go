// Package envelope implements the hybrid encryption envelope used for
// Android payload confidentiality.
//
// Each Android device registers a PEM-encoded RSA public key at
// registration time; the server never holds the matching private key. For
// every message a fresh 256-bit AES key and 96-bit nonce are generated, the
// AES key is wrapped with RSA-OAEP (SHA-256), and the plaintext is sealed
// with AES-GCM. The resulting blob is
//
//	[2-byte big-endian wrapped-key length][wrapped key][12-byte nonce][ciphertext+tag]
//
// encoded as URL-safe base64 without padding. There is no decrypt
// counterpart on the server - decryption happens exclusively on the device.
package envelope
