package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Sealer provides AES-256-GCM encryption for the session file at rest.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer with the given 32-byte AES-256 key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("session sealer: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("session sealer: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("session sealer: create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// NewSealerFromHex decodes a 64-character hex key.
func NewSealerFromHex(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session sealer: key is not valid hex: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts data and returns the nonce prepended to the ciphertext.
func (s *Sealer) Seal(data []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("session seal: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, data, nil), nil
}

// Open extracts the nonce from the front of data and decrypts the remainder.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("session open: ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("session open: %w", err)
	}
	return plaintext, nil
}
