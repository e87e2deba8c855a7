package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrNoKeyMaterial indicates neither a raw key nor a passphrase was supplied.
	ErrNoKeyMaterial = errors.New("cipher: no key material configured")
	// ErrCiphertextInvalid indicates the stored value is malformed or was tampered with.
	ErrCiphertextInvalid = errors.New("cipher: ciphertext invalid")
)

const kdfSaltLength = 16

// Argon2id parameters for passphrase-derived keys. Derivation happens once
// at startup, so the cost can stay on the heavy side.
const (
	kdfTime    uint32 = 3
	kdfMemory  uint32 = 64 * 1024
	kdfThreads uint8  = 4
)

// CredentialCipher encrypts stored user passwords with XChaCha20-Poly1305.
// The ciphertext is authenticated: decryption fails loudly on tampering
// instead of returning garbage.
type CredentialCipher struct {
	aeadKey []byte
}

// CipherConfig supplies key material. Key is a base64-encoded 32-byte key;
// Passphrase derives one via Argon2id with the base64-encoded Salt. Key wins
// when both are set.
type CipherConfig struct {
	Key        string
	Passphrase string
	Salt       string
}

// NewCredentialCipher builds a cipher from configured key material.
func NewCredentialCipher(cfg CipherConfig) (*CredentialCipher, error) {
	switch {
	case cfg.Key != "":
		key, err := base64.StdEncoding.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("cipher: decode key: %w", err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("cipher: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
		}
		return &CredentialCipher{aeadKey: key}, nil
	case cfg.Passphrase != "":
		salt, err := base64.StdEncoding.DecodeString(cfg.Salt)
		if err != nil {
			return nil, fmt.Errorf("cipher: decode salt: %w", err)
		}
		if len(salt) < kdfSaltLength {
			return nil, fmt.Errorf("cipher: salt must be at least %d bytes", kdfSaltLength)
		}
		key := argon2.IDKey([]byte(cfg.Passphrase), salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
		return &CredentialCipher{aeadKey: key}, nil
	default:
		return nil, ErrNoKeyMaterial
	}
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.aeadKey)
	if err != nil {
		return "", fmt.Errorf("cipher: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cipher: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt and returns the plaintext.
func (c *CredentialCipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}

	aead, err := chacha20poly1305.NewX(c.aeadKey)
	if err != nil {
		return "", fmt.Errorf("cipher: init aead: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}

	return string(plaintext), nil
}
