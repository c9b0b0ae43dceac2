// Package tokencipher seals pickup-token payloads into opaque strings and opens them again.
//
// Wire format: base64(nonce || ciphertext) using AES-256-GCM. The key is the SHA-256 digest of
// the configured secret, so secrets of any length produce a valid key.
package tokencipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"dp-canteen-service/internal/apperror"
)

// Payload is the data bound into a pickup token.
type Payload struct {
	OrderRef  string    `json:"order_ref"`
	UserID    string    `json:"user_id"`
	CanteenID uint      `json:"canteen_id"`
	Amount    string    `json:"amount"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrDecode is the only error Open returns. The cause is never attached so callers cannot tell
// a wrong key from corrupted input.
var ErrDecode = apperror.New(apperror.KindDecode, "pickup token could not be decoded")

type Cipher struct {
	aead  cipher.AEAD
	nonce io.Reader
}

// New derives the AES key from secret. An empty secret is a configuration error.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("tokencipher: secret must not be empty")
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("tokencipher: new aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("tokencipher: new gcm: %w", err)
	}

	return &Cipher{aead: aead, nonce: rand.Reader}, nil
}

// Seal encrypts p with a fresh random nonce.
func (c *Cipher) Seal(p Payload) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("tokencipher: marshal payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.nonce, nonce); err != nil {
		return "", fmt.Errorf("tokencipher: read nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Every failure yields ErrDecode.
func (c *Cipher) Open(token string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, ErrDecode
	}

	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return Payload{}, ErrDecode
	}

	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return Payload{}, ErrDecode
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, ErrDecode
	}
	if p.OrderRef == "" || p.ExpiresAt.IsZero() {
		return Payload{}, ErrDecode
	}

	return p, nil
}
