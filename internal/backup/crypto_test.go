package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte(`[{"email":"ada@example.com","consented":true}]`)

	sealed, err := Encrypt(original, "correct horse")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(sealed) != saltSize+nonceSize+len(original)+16 {
		t.Errorf("sealed length = %d", len(sealed))
	}
	if bytes.Contains(sealed, []byte("ada@example.com")) {
		t.Error("plaintext visible in ciphertext")
	}

	opened, err := Decrypt(sealed, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, original) {
		t.Errorf("decrypted = %q, want %q", opened, original)
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	a, _ := Encrypt([]byte("same"), "pw")
	b, _ := Encrypt([]byte("same"), "pw")
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("expected distinct salts")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(sealed, "wrong"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	sealed, err := Encrypt([]byte("secret data"), "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Decrypt(sealed, "pw"); err == nil {
		t.Error("expected error for tampered data")
	}
}

func TestEncryptDecryptEmpty(t *testing.T) {
	sealed, err := Encrypt(nil, "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	opened, err := Decrypt(sealed, "pw")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("expected empty plaintext, got %d bytes", len(opened))
	}
}

func TestDecryptTooSmall(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "pw"); !errors.Is(err, ErrTooSmall) {
		t.Errorf("err = %v, want ErrTooSmall", err)
	}
}
