// Package crypto seals field values with AES-GCM. The key comes from
// DOCMETA_ENC_KEY and must be 16, 24 or 32 bytes long.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
)

// EnvKey names the environment variable holding the key.
const EnvKey = "DOCMETA_ENC_KEY"

var ErrNoKey = errors.New(EnvKey + " not set")

func keyBytes() ([]byte, error) {
	k := os.Getenv(EnvKey)
	if len(k) == 0 {
		return nil, ErrNoKey
	}
	b := []byte(k)
	if l := len(b); l != 16 && l != 24 && l != 32 {
		return nil, fmt.Errorf("invalid key length %d", l)
	}
	return b, nil
}

// CheckEnv validates that a usable key is configured.
func CheckEnv() error {
	_, err := keyBytes()
	return err
}

func newGCM() (cipher.AEAD, error) {
	key, err := keyBytes()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts plain with AES-GCM; the nonce is prepended.
func Encrypt(plain []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt reverses Encrypt.
func Decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ct, nil)
}
