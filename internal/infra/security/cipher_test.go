package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func randomKey(t *testing.T) string {
	t.Helper()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := NewCredentialCipher(CipherConfig{Key: randomKey(t)})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	encrypted, err := cipher.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if encrypted == "hunter2" {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypted, err := cipher.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if decrypted != "hunter2" {
		t.Fatalf("round trip mismatch: %q", decrypted)
	}
}

func TestCipherNondeterministicNonce(t *testing.T) {
	cipher, err := NewCredentialCipher(CipherConfig{Key: randomKey(t)})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	first, err := cipher.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	second, err := cipher.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	if first == second {
		t.Fatal("two encryptions of the same plaintext must differ")
	}
}

func TestCipherRejectsTampering(t *testing.T) {
	cipher, err := NewCredentialCipher(CipherConfig{Key: randomKey(t)})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	encrypted, err := cipher.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := cipher.Decrypt(tampered); !errors.Is(err, ErrCiphertextInvalid) {
		t.Fatalf("expected ErrCiphertextInvalid, got %v", err)
	}
}

func TestCipherDecryptMalformed(t *testing.T) {
	cipher, err := NewCredentialCipher(CipherConfig{Key: randomKey(t)})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	for _, input := range []string{"not base64!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := cipher.Decrypt(input); !errors.Is(err, ErrCiphertextInvalid) {
			t.Fatalf("input %q: expected ErrCiphertextInvalid, got %v", input, err)
		}
	}
}

func TestCipherEmptyCiphertext(t *testing.T) {
	cipher, err := NewCredentialCipher(CipherConfig{Key: randomKey(t)})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	decrypted, err := cipher.Decrypt("")
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if decrypted != "" {
		t.Fatalf("expected empty plaintext, got %q", decrypted)
	}
}

func TestCipherPassphraseDerivation(t *testing.T) {
	salt := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))

	first, err := NewCredentialCipher(CipherConfig{Passphrase: "correct horse", Salt: salt})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}
	second, err := NewCredentialCipher(CipherConfig{Passphrase: "correct horse", Salt: salt})
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	encrypted, err := first.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	// The same passphrase and salt must derive the same key.
	decrypted, err := second.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if decrypted != "hunter2" {
		t.Fatalf("cross-instance round trip mismatch: %q", decrypted)
	}
}

func TestCipherRequiresKeyMaterial(t *testing.T) {
	if _, err := NewCredentialCipher(CipherConfig{}); !errors.Is(err, ErrNoKeyMaterial) {
		t.Fatalf("expected ErrNoKeyMaterial, got %v", err)
	}
}
