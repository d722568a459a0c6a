package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACMessageSigner implements ports.MessageSigner using HMAC-SHA256 under a
// key shared with the mail worker.
type HMACMessageSigner struct {
	key []byte
}

// NewHMACMessageSigner creates a signer for key.
func NewHMACMessageSigner(key string) *HMACMessageSigner {
	return &HMACMessageSigner{key: []byte(key)}
}

// Sign returns the lowercase hex HMAC of payload.
func (s *HMACMessageSigner) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time.
func (s *HMACMessageSigner) Verify(payload []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}
