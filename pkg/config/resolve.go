package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// DefaultAPIURL is used when neither flag, env nor profile name a server.
const DefaultAPIURL = "http://localhost:8080"

type Resolved struct {
	APIURL   string
	Database string
	Timeout  time.Duration
	Profile  string
	Actor    string
}

// Resolve merges flags, DOCCTL_* variables and the selected profile, in that
// order of precedence.
func Resolve(cmd *cobra.Command) (Resolved, error) {
	flagURL, _ := cmd.Root().PersistentFlags().GetString("api-url")
	flagDB, _ := cmd.Root().PersistentFlags().GetString("db")

	envURL := os.Getenv("DOCCTL_API_URL")
	envDB := os.Getenv("DOCCTL_DB")

	cfg, err := Load()
	if err != nil {
		return Resolved{}, fmt.Errorf("load config: %w", err)
	}
	prof := cfg.Active
	if p, _ := cmd.Root().PersistentFlags().GetString("profile"); p != "" {
		prof = p
	}
	cp := cfg.Profiles[prof]

	r := Resolved{
		APIURL:   firstNonEmpty(flagURL, envURL, cp.APIURL, DefaultAPIURL),
		Database: firstNonEmpty(flagDB, envDB, cp.Database),
		Timeout:  30 * time.Second,
		Profile:  prof,
		Actor:    firstNonEmpty(os.Getenv("DOCCTL_ACTOR"), cp.Actor, os.Getenv("USER"), "docctl"),
	}
	if t := firstNonEmpty(os.Getenv("DOCCTL_TIMEOUT"), cp.Timeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return Resolved{}, fmt.Errorf("timeout %q: %w", t, err)
		}
		r.Timeout = d
	}
	return r, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
