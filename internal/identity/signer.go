// Package identity signs outgoing requests with the validator key so subnet
// services can verify who is calling.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces request signatures from the validator key.
type Signer struct {
	key    string
	secret []byte
}

// NewSigner creates a signer for the given key and secret.
func NewSigner(key string, secret []byte) *Signer {
	return &Signer{key: key, secret: secret}
}

// Key returns the public validator key used as the request identity.
func (s *Signer) Key() string {
	return s.key
}

// Sign returns the hex-encoded HMAC-SHA256 of msg under the validator secret.
func (s *Signer) Sign(msg []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
