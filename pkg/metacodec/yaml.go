// Package metacodec reads and writes metadata definitions as YAML files.
package metacodec

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

// CurrentVersion is written into every encoded file.
const CurrentVersion = "1.1"

// supported accepts every 1.x file.
var supported = mustConstraint("< 2.0.0")

func mustConstraint(c string) *semver.Constraints {
	v, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return v
}

// Entry is a definition and the metadata key it is stored under.
type Entry struct {
	Key               string `yaml:"key"`
	schema.Definition `yaml:",inline"`
}

// File is the decoded content of a metadata file.
type File struct {
	Version     string  `yaml:"version"`
	Database    string  `yaml:"database,omitempty"`
	Definitions []Entry `yaml:"definitions"`
}

// 1.0 files held a single definition at the top level.
type fileV10 struct {
	Version string `yaml:"version"`
	Entry   `yaml:",inline"`
}

// Encode writes entries for db, ordered by key.
func Encode(db string, entries []Entry) ([]byte, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return yaml.Marshal(File{Version: CurrentVersion, Database: db, Definitions: sorted})
}

// Decode reads a metadata file of any supported version.
func Decode(b []byte) (File, error) {
	var v struct {
		Version string `yaml:"version"`
	}
	if err := yaml.Unmarshal(b, &v); err != nil {
		return File{}, fmt.Errorf("decode metadata file: %w", err)
	}
	ver, err := parseVersion(v.Version)
	if err != nil {
		return File{}, err
	}
	if !supported.Check(ver) {
		return File{}, fmt.Errorf("metadata file version %s is not supported (want %s)", v.Version, supported)
	}

	if ver.LessThan(semver.MustParse(CurrentVersion)) {
		var f fileV10
		if err := yaml.Unmarshal(b, &f); err != nil {
			return File{}, fmt.Errorf("decode metadata file: %w", err)
		}
		if f.Key == "" {
			return File{}, fmt.Errorf("decode metadata file: missing key")
		}
		return File{Version: CurrentVersion, Definitions: []Entry{f.Entry}}, nil
	}

	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("decode metadata file: %w", err)
	}
	for i, e := range f.Definitions {
		if e.Key == "" {
			return File{}, fmt.Errorf("decode metadata file: definition %d has no key", i)
		}
	}
	return f, nil
}

func parseVersion(s string) (*semver.Version, error) {
	if s == "" {
		s = "1.0"
	}
	if strings.Count(s, ".") == 1 {
		s += ".0"
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("metadata file version %q: %w", s, err)
	}
	return v, nil
}
