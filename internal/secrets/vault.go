// Package secrets encrypts data source credentials at rest using age.
//
// Connection credentials are encrypted with an age public key before they
// reach the database, and decrypted only where a worker holds the matching
// private key.
package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"
)

var (
	// ErrNoPublicKey is returned when no public key is configured for encryption.
	ErrNoPublicKey = errors.New("no public key configured for encryption")
	// ErrNoPrivateKey is returned when no private key is configured for decryption.
	ErrNoPrivateKey = errors.New("no private key configured for decryption")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when a key is invalid.
	ErrInvalidKey = errors.New("invalid key format")
)

// Vault encrypts and decrypts credential blobs.
// The API server usually only holds the public key; sync workers hold the
// private key as well.
type Vault struct {
	publicKey  *age.X25519Recipient
	privateKey *age.X25519Identity
	logger     *slog.Logger
}

// Config holds the vault key material.
type Config struct {
	// AgePublicKey is the age public key for encryption.
	// Format: age1... (Bech32 encoded)
	AgePublicKey string
	// AgePrivateKey is the age private key for decryption.
	// Format: AGE-SECRET-KEY-1... (Bech32 encoded)
	AgePrivateKey string
}

// NewVault creates a vault. At least one of the public key (for encryption)
// or the private key (for decryption) must be provided.
func NewVault(cfg *Config, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := &Vault{logger: logger}

	if cfg.AgePublicKey != "" {
		recipient, err := age.ParseX25519Recipient(cfg.AgePublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid public key: %v", ErrInvalidKey, err)
		}
		v.publicKey = recipient
	}

	if cfg.AgePrivateKey != "" {
		identity, err := age.ParseX25519Identity(cfg.AgePrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key: %v", ErrInvalidKey, err)
		}
		v.privateKey = identity
	}

	if v.publicKey == nil && v.privateKey == nil {
		return nil, fmt.Errorf("%w: no keys configured", ErrInvalidKey)
	}

	// A private key implies its recipient; derive the public half so that
	// worker processes can also encrypt.
	if v.publicKey == nil && v.privateKey != nil {
		v.publicKey = v.privateKey.Recipient()
	}

	return v, nil
}

// Encrypt encrypts plaintext with the configured public key.
func (v *Vault) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if v.publicKey == nil {
		return nil, ErrNoPublicKey
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.publicKey)
	if err != nil {
		v.logger.Error("failed to create age encryptor", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	return buf.Bytes(), nil
}

// Decrypt decrypts age ciphertext with the configured private key.
func (v *Vault) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if v.privateKey == nil {
		return nil, ErrNoPrivateKey
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), v.privateKey)
	if err != nil {
		v.logger.Error("failed to create age decryptor", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// CanEncrypt returns true if the vault is configured for encryption.
func (v *Vault) CanEncrypt() bool {
	return v.publicKey != nil
}

// CanDecrypt returns true if the vault is configured for decryption.
func (v *Vault) CanDecrypt() bool {
	return v.privateKey != nil
}

// PublicKey returns the configured public key string, or empty if unset.
func (v *Vault) PublicKey() string {
	if v.publicKey == nil {
		return ""
	}
	return v.publicKey.String()
}

// GenerateKeyPair generates a new age key pair.
// Returns the public key (for encryption) and private key (for decryption).
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating age key pair: %w", err)
	}

	return identity.Recipient().String(), identity.String(), nil
}
