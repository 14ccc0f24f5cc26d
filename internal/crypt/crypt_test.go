package crypt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/tmartens/keepsake/internal/errors"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	plaintext := []byte("the contents of a backup archive")
	sealed, err := Encrypt(plaintext, "hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("ciphertext contains the plaintext")
	}

	got, err := Decrypt(sealed, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), "correct")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_, err = Decrypt(sealed, "incorrect")
	if !errors.Is(err, errors.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), "pw")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	_, err = Decrypt(sealed, "pw")
	if !errors.Is(err, errors.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestDecrypt_NotEncryptedInput(t *testing.T) {
	_, err := Decrypt([]byte("just a plain file"), "pw")
	if err == nil {
		t.Fatal("expected error for non-encrypted input")
	}
	if errors.Is(err, errors.ErrAuthentication) {
		t.Errorf("format error must not be an authentication failure: %v", err)
	}
}

func TestEncrypt_UniqueSaltAndNonce(t *testing.T) {
	a, err := Encrypt([]byte("same input"), "pw")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt([]byte("same input"), "pw")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input produced identical output")
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "backup.tar.gz")
	if err := os.WriteFile(src, []byte("archive bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	enc := src + Suffix
	if err := EncryptFile(src, enc, "pw"); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	f, err := os.Open(enc)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	encrypted := IsEncrypted(f)
	f.Close()
	if !encrypted {
		t.Error("IsEncrypted = false for an encrypted file")
	}

	out := filepath.Join(dir, "restored.tar.gz")
	if err := DecryptFile(enc, out, "pw"); err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "archive bytes" {
		t.Errorf("restored %q, want %q", got, "archive bytes")
	}
}
