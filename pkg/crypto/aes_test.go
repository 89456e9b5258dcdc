package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	t.Setenv(EnvKey, "0123456789abcdef0123456789abcdef")
	plain := []byte("card 4111")
	enc, err := Encrypt(plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, plain) {
		t.Fatal("ciphertext leaks plaintext")
	}
	dec, err := Decrypt(enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("round trip mismatch: %q != %q", dec, plain)
	}
}

func TestCheckEnv(t *testing.T) {
	t.Setenv(EnvKey, "")
	if err := CheckEnv(); !errors.Is(err, ErrNoKey) {
		t.Fatalf("err = %v", err)
	}
	t.Setenv(EnvKey, "short")
	if err := CheckEnv(); err == nil {
		t.Fatal("expected error for bad key length")
	}
}

func TestDecryptShort(t *testing.T) {
	t.Setenv(EnvKey, "0123456789abcdef")
	if _, err := Decrypt([]byte("x")); err == nil {
		t.Fatal("expected error")
	}
}
