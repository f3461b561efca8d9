package secrets

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	vault, err := NewVault(&Config{AgePublicKey: pub, AgePrivateKey: priv}, nil)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	plaintext := []byte(`{"host":"db.internal","user":"etl","password":"hunter2"}`)

	ciphertext, err := vault.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("hunter2")) {
		t.Error("ciphertext leaks plaintext")
	}

	decrypted, err := vault.Decrypt(context.Background(), ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip mismatch: got %q", decrypted)
	}
}

func TestEncryptOnlyVaultCannotDecrypt(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	vault, err := NewVault(&Config{AgePublicKey: pub}, nil)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	if !vault.CanEncrypt() || vault.CanDecrypt() {
		t.Fatalf("unexpected capabilities: encrypt=%v decrypt=%v", vault.CanEncrypt(), vault.CanDecrypt())
	}

	_, err = vault.Decrypt(context.Background(), []byte("whatever"))
	if !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("Decrypt error = %v, want ErrNoPrivateKey", err)
	}
}

func TestPrivateKeyDerivesPublicKey(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	vault, err := NewVault(&Config{AgePrivateKey: priv}, nil)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	if vault.PublicKey() != pub {
		t.Errorf("derived public key %q, want %q", vault.PublicKey(), pub)
	}
	if !vault.CanEncrypt() {
		t.Error("vault with private key should be able to encrypt")
	}
}

func TestNewVaultRejectsGarbageKeys(t *testing.T) {
	if _, err := NewVault(&Config{AgePublicKey: "not-a-key"}, nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
	if _, err := NewVault(&Config{}, nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey for empty config", err)
	}
}
