package storage

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Seal encrypts confidential integer fields with ChaCha20-Poly1305
// before they reach disk. Plaintext never hits Pebble; disclosure is
// gated by the ledger's capability checks, not by field naming.
type Seal struct {
	key []byte
}

// NewSeal requires a 32-byte key.
func NewSeal(key []byte) (*Seal, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Seal{key: k}, nil
}

// Encrypt seals an int64 under a fresh random nonce. The nonce is
// prepended to the ciphertext.
func (s *Seal) Encrypt(v int64) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	var plain [8]byte
	binary.BigEndian.PutUint64(plain[:], uint64(v))
	return aead.Seal(nonce, nonce, plain[:], nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (s *Seal) Decrypt(blob []byte) (int64, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return 0, err
	}
	if len(blob) < chacha20poly1305.NonceSize {
		return 0, fmt.Errorf("sealed blob too short: %d bytes", len(blob))
	}

	plain, err := aead.Open(nil, blob[:chacha20poly1305.NonceSize], blob[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return 0, fmt.Errorf("open sealed value: %w", err)
	}
	if len(plain) != 8 {
		return 0, fmt.Errorf("sealed value has %d plaintext bytes, want 8", len(plain))
	}
	return int64(binary.BigEndian.Uint64(plain)), nil
}
