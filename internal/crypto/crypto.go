// Package crypto seals LLM provider credentials with AES-256-GCM before
// they are written to the local database.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Keyring holds the active AES-256 key.
type Keyring struct {
	key []byte
}

// NewKeyring builds a keyring from a base64-encoded 32-byte key. When the
// key is empty a random one is generated, which means stored credentials do
// not survive a restart; fine for development, logged so it is not missed.
func NewKeyring(encodedKey string) (*Keyring, error) {
	if encodedKey == "" {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, err
		}
		log.Warn().Msg("no ENCRYPTION_KEY set, using ephemeral key; stored credentials reset on restart")
		return &Keyring{key: key}, nil
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must decode to 32 bytes for AES-256")
	}
	return &Keyring{key: key}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (k *Keyring) Seal(plaintext string) (string, error) {
	gcm, err := k.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (k *Keyring) Open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	gcm, err := k.gcm()
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (k *Keyring) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// MaskAPIKey renders a key safe for display, e.g. "sk-...w3af".
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 10 {
		return "***"
	}
	return apiKey[:3] + "..." + apiKey[len(apiKey)-4:]
}
