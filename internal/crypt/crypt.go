// Package crypt encrypts and decrypts backup archives with AES-256-GCM.
// Keys are derived from a password with PBKDF2-SHA256. The on-disk format is
//
//	magic(4) || salt(16) || nonce(12) || ciphertext
//
// GCM authenticates the ciphertext, so a wrong password and a tampered file
// both surface as an authentication failure.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tmartens/keepsake/internal/errors"
)

// Suffix marks encrypted archives.
const Suffix = ".aes"

const (
	saltSize   = 16
	keySize    = 32
	iterations = 200_000
)

var magic = []byte("KSK1")

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, errors.Wrap(err, "initializing cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "initializing GCM")
	}
	return gcm, nil
}

// Encrypt seals plaintext with a key derived from password.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "generating salt")
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "generating nonce")
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt. A wrong password or corrupted
// ciphertext yields ErrAuthentication; a malformed envelope does not.
func Decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < len(magic)+saltSize || !bytes.Equal(data[:len(magic)], magic) {
		return nil, errors.Newf("input is not an encrypted backup")
	}
	data = data[len(magic):]
	salt, data := data[:saltSize], data[saltSize:]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.Newf("encrypted backup is truncated")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Authentication(err, "decrypting backup (wrong password or corrupted data)")
	}
	return plaintext, nil
}

// EncryptFile encrypts src into dst.
func EncryptFile(src, dst, password string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "reading %s", src)
	}
	sealed, err := Encrypt(data, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, sealed, 0o600); err != nil {
		return errors.Wrapf(err, "writing %s", dst)
	}
	return nil
}

// DecryptFile decrypts src into dst.
func DecryptFile(src, dst, password string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "reading %s", src)
	}
	plain, err := Decrypt(data, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, plain, 0o600); err != nil {
		return errors.Wrapf(err, "writing %s", dst)
	}
	return nil
}

// IsEncrypted reports whether r starts with the encrypted backup magic.
func IsEncrypted(r io.ReaderAt) bool {
	head := make([]byte, len(magic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return false
	}
	return bytes.Equal(head, magic)
}
