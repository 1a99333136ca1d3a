package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"io"
)

const (
	// KeySize is the symmetric key size in bytes (AES-256).
	KeySize = 32

	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12
)

// ParsePublicKey decodes a PEM-encoded RSA public key. PKIX ("PUBLIC KEY")
// blocks are tried first, PKCS#1 ("RSA PUBLIC KEY") as a fallback.
func ParsePublicKey(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, ErrInvalidPublicKey
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, ErrNotRSAPublicKey
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Join(ErrInvalidPublicKey, err)
	}
	return rsaKey, nil
}

// Encrypt seals plaintext for the holder of the given PEM-encoded RSA public
// key and returns the envelope as URL-safe base64 without padding.
//
// A fresh symmetric key and nonce are generated per call and never reused
// across messages.
func Encrypt(publicKeyPEM string, plaintext []byte) (string, error) {
	publicKey, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", err
	}

	symKey := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, symKey); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, symKey, nil)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(symKey)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	// [2-byte BE wrapped-key length][wrapped key][nonce][ciphertext+tag]
	blob := make([]byte, 0, 2+len(wrappedKey)+NonceSize+len(ciphertext))
	blob = binary.BigEndian.AppendUint16(blob, uint16(len(wrappedKey)))
	blob = append(blob, wrappedKey...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return base64.RawURLEncoding.EncodeToString(blob), nil
}
