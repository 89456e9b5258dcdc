package util

import (
	"os"
	"strings"
)

// GetEnv returns the value of the environment variable named by key or def if empty.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvList splits a comma separated variable, trimming blanks and dropping
// empty items. def is used when the variable is unset or empty.
func GetEnvList(key, def string) []string {
	var out []string
	for item := range strings.SplitSeq(GetEnv(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
