package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// AESMessageSealer implements ports.MessageSealer using AES-256-GCM. The
// recipient is bound as additional data, so a sealed body copied into a
// message for someone else fails to open.
type AESMessageSealer struct {
	aead cipher.AEAD
}

// NewAESMessageSealer creates a sealer from a 64-character hex key (32 bytes decoded).
func NewAESMessageSealer(hexKey string) (*AESMessageSealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding AES key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("AES key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESMessageSealer{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext).
func (s *AESMessageSealer) Seal(plaintext, recipient string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(recipient))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal for the same recipient.
func (s *AESMessageSealer) Open(sealed, recipient string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed body: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("sealed body too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(recipient))
	if err != nil {
		return "", fmt.Errorf("opening sealed body: %w", err)
	}
	return string(plaintext), nil
}
