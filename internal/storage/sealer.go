package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "v1:"

var ErrUnsealable = errors.New("sealed value cannot be opened")

// Sealer encrypts values at rest with XChaCha20-Poly1305.
// The key is derived from a passphrase and the device id.
type Sealer struct {
	key []byte
}

func NewSealer(passphrase, deviceID string) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("seal key is empty")
	}

	h := hkdf.New(sha256.New, []byte(passphrase), []byte(deviceID), []byte("ticketera-session-token"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("failed to derive seal key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal returns "v1:" followed by base64(nonce || ciphertext). key is bound as associated data.
func (s *Sealer) Seal(key, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(key))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(key, value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return "", ErrUnsealable
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrUnsealable
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrUnsealable
	}

	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(key))
	if err != nil {
		return "", ErrUnsealable
	}
	return string(plain), nil
}
