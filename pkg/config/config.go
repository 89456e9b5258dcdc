// Package config stores docctl profiles in ~/.docctl/config.json, or in the
// file named by DOCCTL_CONFIG.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvPath overrides the config file location.
const EnvPath = "DOCCTL_CONFIG"

var (
	ErrUnknownProfile = errors.New("profile not found")
	ErrUnknownKey     = errors.New("unknown profile key")
)

// Keys lists the settings accepted by File.Set.
var Keys = []string{"apiUrl", "database", "timeout", "actor"}

// Profile is a named server and the defaults used with it.
type Profile struct {
	Name     string `json:"name"`
	APIURL   string `json:"apiUrl"`
	Database string `json:"database,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	// Actor is reported as the editor in the server's metadata history.
	Actor string `json:"actor,omitempty"`
}

type File struct {
	Active   string             `json:"active"`
	Profiles map[string]Profile `json:"profiles"`
	Version  int                `json:"version"`
}

// Use makes name the active profile.
func (f *File) Use(name string) error {
	if _, ok := f.Profiles[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownProfile)
	}
	f.Active = name
	return nil
}

// Set stores one setting of profile name, creating the profile when needed.
// The first profile created becomes the active one.
func (f *File) Set(name, key, val string) error {
	p := f.Profiles[name]
	p.Name = name
	switch key {
	case "apiUrl", "api-url":
		p.APIURL = val
	case "database", "db":
		p.Database = val
	case "timeout":
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("timeout %q: %w", val, err)
		}
		p.Timeout = val
	case "actor":
		p.Actor = val
	default:
		return fmt.Errorf("%q: %w", key, ErrUnknownKey)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	f.Profiles[name] = p
	if len(f.Profiles) == 1 {
		f.Active = name
	}
	return nil
}

func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return "", err
		}
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".docctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func Load() (*File, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return &File{Active: "default", Profiles: map[string]Profile{}, Version: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	if f.Active == "" {
		f.Active = "default"
	}
	if f.Version == 0 {
		f.Version = 1
	}
	return &f, nil
}

// Save writes f atomically with owner-only permissions.
func Save(f *File) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
