// Package internal holds identifier and opaque-token codecs shared by the
// engine's stores. Tokens are id||secret blobs in padding-free base64url; only
// the SHA-256 of the secret half is ever persisted.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ID is a random 128-bit identifier for sessions and challenges.
type ID [16]byte

// SecretSize is the byte length of a token's secret half.
const SecretSize = 32

const tokenRawSize = len(ID{}) + SecretSize

// NewID returns a random identifier.
func NewID() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

// String renders the identifier as compact base64url.
func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ParseID decodes an identifier rendered by [ID.String].
func ParseID(s string) (ID, error) {
	var id ID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid id size")
	}

	copy(id[:], raw)
	return id, nil
}

// NewSecret returns a random token secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret returns the persisted form of a token secret.
func HashSecret(secret [SecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeToken packs an identifier and its secret into one opaque string.
func EncodeToken(id string, secret [SecretSize]byte) (string, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return "", err
	}

	var raw [tokenRawSize]byte
	copy(raw[:len(parsed)], parsed[:])
	copy(raw[len(parsed):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeToken splits an opaque token back into its identifier and secret.
func DecodeToken(token string) (string, [SecretSize]byte, error) {
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != tokenRawSize {
		return "", secret, errors.New("invalid token size")
	}

	var id ID
	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id.String(), secret, nil
}
