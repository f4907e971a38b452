package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts personal data at rest with AES-GCM. Every value is bound to
// an owner id as additional data, so a sealed value copied onto another row
// fails to open.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a sealer with the given key.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func NewSealer(key []byte) (*Sealer, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("invalid key length: %d (must be 16, 24, or 32)", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewSealerFromBase64 creates a sealer from a base64-encoded key
func NewSealerFromBase64(keyBase64 string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return NewSealer(key)
}

// GenerateKey generates a new random AES-256 key
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext for owner and returns nonce||ciphertext.
func (s *Sealer) Seal(owner, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, owner), nil
}

// Open reverses Seal. It fails if the value was sealed for another owner.
func (s *Sealer) Open(owner, sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// SealJSON marshals v and seals it as base64 text suitable for a TEXT column.
func (s *Sealer) SealJSON(owner []byte, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	sealed, err := s.Seal(owner, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenJSON decodes and opens a value produced by SealJSON into v.
func (s *Sealer) OpenJSON(owner []byte, sealedBase64 string, v any) error {
	sealed, err := base64.StdEncoding.DecodeString(sealedBase64)
	if err != nil {
		return fmt.Errorf("failed to decode base64: %w", err)
	}
	plaintext, err := s.Open(owner, sealed)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}
