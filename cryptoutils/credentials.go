package cryptoutils

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SealedPrefix marks a credential sealed by PassphraseSealer.
const SealedPrefix = "sealed:v1:"

// sealingSalt domain-separates the credential key from other uses of the passphrase.
const sealingSalt = "SIP-PROVISIONING-CREDENTIALS-"

var ErrInvalidSealedValue = errors.New("invalid sealed credential")

// CredentialSealer protects credentials at rest in the registry snapshot.
type CredentialSealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// PassphraseSealer seals credentials with XChaCha20-Poly1305 under a key
// derived from an operator passphrase with Argon2id.
type PassphraseSealer struct {
	aead cipher.AEAD
}

// NewPassphraseSealer derives the sealing key from passphrase.
func NewPassphraseSealer(passphrase string) (*PassphraseSealer, error) {
	if passphrase == "" {
		return nil, errors.New("empty sealing passphrase")
	}

	// Parameters: time=1, memory=64*1024, threads=4, keyLen=32
	key := argon2.IDKey([]byte(passphrase), []byte(sealingSalt), 1, 64*1024, 4, chacha20poly1305.KeySize)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &PassphraseSealer{aead: aead}, nil
}

// Seal returns value encrypted and tagged with SealedPrefix.
// Empty values are returned as is. Values that already carry the prefix are
// sealed again, so Open always yields the exact input.
func (s *PassphraseSealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(SealedPrefix))
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without SealedPrefix are returned unchanged so
// snapshots written before sealing was enabled keep loading.
func (s *PassphraseSealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealedValue, err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", fmt.Errorf("%w: too short", ErrInvalidSealedValue)
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealedValue, err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed credential prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// PlaintextSealer stores credentials unchanged. It is used when no passphrase is configured.
// Values carrying SealedPrefix are refused since Open could not tell them
// from sealed credentials.
type PlaintextSealer struct{}

func (PlaintextSealer) Seal(plaintext string) (string, error) {
	if IsSealed(plaintext) {
		return "", fmt.Errorf("%w: plaintext credential uses the reserved %q prefix", ErrInvalidSealedValue, SealedPrefix)
	}
	return plaintext, nil
}

func (PlaintextSealer) Open(value string) (string, error) {
	if IsSealed(value) {
		return "", fmt.Errorf("%w: sealed credential found but no passphrase configured", ErrInvalidSealedValue)
	}
	return value, nil
}
