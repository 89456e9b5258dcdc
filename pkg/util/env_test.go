package util

import (
	"slices"
	"testing"
)

func TestGetEnvList(t *testing.T) {
	t.Setenv("DOCMETA_TEST_LIST", " a, ,b ,")
	if got := GetEnvList("DOCMETA_TEST_LIST", "x"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("got %q", got)
	}
	t.Setenv("DOCMETA_TEST_LIST", "")
	if got := GetEnvList("DOCMETA_TEST_LIST", "x,y"); !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("default %q", got)
	}
}

func TestDetectDriver(t *testing.T) {
	for dsn, want := range map[string]string{
		"memory":                        "memory",
		"mongodb://localhost:27017":     "mongo",
		"postgres://u@localhost/db":     "postgres",
		"mysql://u:p@localhost:3306/db": "mysql",
		"file:docmeta.db":               "sqlite3",
	} {
		got, err := DetectDriver(dsn)
		if err != nil || got != want {
			t.Errorf("DetectDriver(%q) = %q, %v; want %q", dsn, got, err, want)
		}
	}
	if _, err := DetectDriver("ftp://nowhere"); err == nil {
		t.Error("expected error for unknown scheme")
	}
}
