// Package fieldsec applies the storage_type, encrypt and mask settings of
// field definitions to document values.
package fieldsec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/faciam-dev/docmeta/pkg/crypto"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

const (
	shaPrefix = "sha256:"
	encPrefix = "enc:"
	// MaskChar replaces every hidden rune.
	MaskChar = "*"
)

// Protect returns a copy of doc with protected values hashed or encrypted.
// Values already in protected form are left alone so fetched documents can
// be saved back unchanged.
func Protect(fields schema.Fields, doc map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for key, f := range fields.All() {
		v, ok := out[key]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		switch {
		case f.StorageType == schema.StorageBCrypt:
			if isBCrypt(s) {
				continue
			}
			h, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash %s: %w", key, err)
			}
			out[key] = string(h)
		case f.StorageType == schema.StorageSHA256:
			if strings.HasPrefix(s, shaPrefix) {
				continue
			}
			sum := sha256.Sum256([]byte(s))
			out[key] = shaPrefix + hex.EncodeToString(sum[:])
		case f.StorageType == schema.StorageAES256 || f.Encrypt:
			if strings.HasPrefix(s, encPrefix) {
				continue
			}
			ct, err := crypto.Encrypt([]byte(s))
			if err != nil {
				return nil, fmt.Errorf("encrypt %s: %w", key, err)
			}
			out[key] = encPrefix + base64.StdEncoding.EncodeToString(ct)
		}
	}
	return out, nil
}

// Reveal returns a copy of doc prepared for display: encrypted values are
// decrypted when the key is available and masked fields are hidden.
func Reveal(fields schema.Fields, doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for key, f := range fields.All() {
		v, ok := out[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.HasPrefix(s, encPrefix) {
			if plain, err := decrypt(s); err == nil {
				v = plain
				out[key] = plain
			}
		}
		if f.Mask {
			out[key] = Mask(fmt.Sprint(v))
		}
	}
	return out
}

// Mask hides all but the last four runes of s; values of four runes or
// fewer are hidden entirely.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat(MaskChar, len(r))
	}
	return strings.Repeat(MaskChar, len(r)-4) + string(r[len(r)-4:])
}

// CheckPassword compares plain against a stored BCrypt value.
func CheckPassword(stored, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
}

func decrypt(s string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, encPrefix))
	if err != nil {
		return "", err
	}
	b, err := crypto.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isBCrypt(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
