// secret seals short opaque strings (external connection strings) with
// AES-256-GCM so they can be stored at rest.
//
// Layout of a sealed value:
//   - IV: 16 random bytes, fresh for every Encrypt call;
//   - AuthTag: 16-byte GCM tag;
//   - CipherText: ciphertext without the tag.
//
// All three fields are hex encoded. The key is 32 raw bytes supplied by the
// operator; passphrases are not stretched or hashed into a key.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize: AES-256 key length in bytes.
	KeySize = 32
	// NonceSize: GCM nonce (IV) length in bytes.
	NonceSize = 16
	// TagSize: GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrInvalidKey: key material is absent or does not decode to KeySize bytes.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrIntegrity: sealed value is malformed or its tag does not verify.
	ErrIntegrity = errors.New("sealed value failed integrity check")
)

// Sealed is an encrypted value as persisted.
type Sealed struct {
	CipherText string
	IV         string
	AuthTag    string
}

// Cipher encrypts and decrypts values under one process-wide key.
// Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Cipher from raw key bytes.
func New(key []byte) (*Cipher, error) {
	const op = "secret.New"

	if len(key) != KeySize {
		return nil, fmt.Errorf("%s: %w: want %d bytes, got %d", op, ErrInvalidKey, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// ParseKey decodes operator-supplied key material.
// Accepted forms: 64 hex characters or base64 (std/url, padded or raw)
// decoding to exactly KeySize bytes.
func ParseKey(s string) ([]byte, error) {
	const op = "secret.ParseKey"

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%s: %w: empty", op, ErrInvalidKey)
	}

	if len(s) == hex.EncodedLen(KeySize) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil && len(b) == KeySize {
			return b, nil
		}
	}

	return nil, fmt.Errorf("%s: %w: want %d bytes as hex or base64", op, ErrInvalidKey, KeySize)
}

// Encrypt seals plaintext with a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (Sealed, error) {
	const op = "secret.Encrypt"

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Sealed{}, fmt.Errorf("%s: %w", op, err)
	}

	out := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	body, tag := out[:len(out)-TagSize], out[len(out)-TagSize:]

	return Sealed{
		CipherText: hex.EncodeToString(body),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens a sealed value. Every failure, including malformed hex or
// wrong field lengths, is reported as ErrIntegrity and no plaintext is returned.
func (c *Cipher) Decrypt(s Sealed) (string, error) {
	const op = "secret.Decrypt"

	body, err := hex.DecodeString(s.CipherText)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	iv, err := hex.DecodeString(s.IV)
	if err != nil || len(iv) != NonceSize {
		return "", fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	tag, err := hex.DecodeString(s.AuthTag)
	if err != nil || len(tag) != TagSize {
		return "", fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	sealed := make([]byte, 0, len(body)+len(tag))
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	return string(plain), nil
}
