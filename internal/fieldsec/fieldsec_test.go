package fieldsec

import (
	"strings"
	"testing"

	"github.com/faciam-dev/docmeta/pkg/crypto"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

func fields() schema.Fields {
	pw := schema.NewField("password")
	pw.StorageType = schema.StorageBCrypt
	tok := schema.NewField("token")
	tok.StorageType = schema.StorageSHA256
	card := schema.NewField("card")
	card.StorageType = schema.StorageAES256
	card.Mask = true
	email := schema.NewField("email")
	email.Mask = true
	return schema.NewFields(pw, tok, card, email, schema.NewField("name"))
}

func TestProtectAndReveal(t *testing.T) {
	t.Setenv(crypto.EnvKey, "0123456789abcdef")
	doc := map[string]any{
		"password": "hunter2",
		"token":    "abc",
		"card":     "4111111111111111",
		"email":    "ada@example.com",
		"name":     "Ada",
	}
	stored, err := Protect(fields(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if doc["password"] != "hunter2" {
		t.Fatal("input mutated")
	}
	if !CheckPassword(stored["password"].(string), "hunter2") {
		t.Fatalf("bcrypt value %v", stored["password"])
	}
	if tok := stored["token"].(string); tok != "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("token = %s", tok)
	}
	if c := stored["card"].(string); !strings.HasPrefix(c, "enc:") || strings.Contains(c, "4111") {
		t.Fatalf("card = %s", c)
	}
	if stored["name"] != "Ada" || stored["email"] != "ada@example.com" {
		t.Fatalf("unprotected fields changed: %v", stored)
	}

	again, err := Protect(fields(), stored)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"password", "token", "card"} {
		if again[k] != stored[k] {
			t.Fatalf("%s protected twice", k)
		}
	}

	shown := Reveal(fields(), stored)
	if shown["card"] != "************1111" {
		t.Fatalf("card shown as %v", shown["card"])
	}
	if shown["email"] != "***********.com" {
		t.Fatalf("email shown as %v", shown["email"])
	}
	if shown["name"] != "Ada" {
		t.Fatalf("name shown as %v", shown["name"])
	}
}

func TestProtectWithoutKey(t *testing.T) {
	t.Setenv(crypto.EnvKey, "")
	if _, err := Protect(fields(), map[string]any{"card": "4111"}); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestMask(t *testing.T) {
	for in, want := range map[string]string{"": "", "abc": "***", "abcd": "****", "abcdef": "**cdef"} {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}
