package secrets

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// For any credential blob, encrypting and then decrypting returns the
// original bytes.
func TestCredentialEncryptionRoundTrip(t *testing.T) {
	publicKey, privateKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	vault, err := NewVault(&Config{
		AgePublicKey:  publicKey,
		AgePrivateKey: privateKey,
	}, quietLogger())
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("encrypt then decrypt returns original plaintext", prop.ForAll(
		func(plaintext []byte) bool {
			ctx := context.Background()

			ciphertext, err := vault.Encrypt(ctx, plaintext)
			if err != nil {
				return false
			}

			decrypted, err := vault.Decrypt(ctx, ciphertext)
			if err != nil {
				return false
			}

			return bytes.Equal(plaintext, decrypted)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// Ciphertext must never contain the plaintext for any non-trivial input.
func TestCiphertextDoesNotLeakPlaintext(t *testing.T) {
	publicKey, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	vault, err := NewVault(&Config{AgePublicKey: publicKey}, quietLogger())
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("ciphertext hides plaintext", prop.ForAll(
		func(secret string) bool {
			if len(secret) < 8 {
				return true
			}

			ciphertext, err := vault.Encrypt(context.Background(), []byte(secret))
			if err != nil {
				return false
			}

			return !bytes.Contains(ciphertext, []byte(secret))
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
