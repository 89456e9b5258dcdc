// Package docpath encodes hierarchical document paths.
//
// A path alternates collection names and document ids, always starting with
// a collection: "users/u1/posts/p9". Field definitions are shared by every
// document of a collection, so schema lookups use a metadata key in which
// each document id is replaced by a placeholder and segments are joined with
// a delimiter that cannot appear in a collection name:
//
//	users/u1/posts    -> users$:_doc_id$posts
//	users/u1/posts/p9 -> users$:_doc_id$posts   (Key drops the trailing id)
package docpath

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator separates path segments.
	Separator = "/"
	// DocIDPlaceholder replaces document ids in metadata keys.
	DocIDPlaceholder = ":_doc_id"
	// KeyDelimiter joins metadata key segments.
	KeyDelimiter = "$"
	// StorageSeparator joins the segments of a nested collection's storage name.
	StorageSeparator = "."
)

// ErrInvalidName is returned for names that cannot be used as a path segment.
var ErrInvalidName = errors.New("invalid name")

// Codec converts paths to metadata keys.
type Codec struct {
	Placeholder string
	Delimiter   string
}

// Default is the codec used by the API.
var Default = Codec{Placeholder: DocIDPlaceholder, Delimiter: KeyDelimiter}

// Split returns the non-empty segments of p.
func Split(p string) []string {
	raw := strings.Split(p, Separator)
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Join joins segments into a path.
func Join(segments ...string) string {
	var parts []string
	for _, s := range segments {
		parts = append(parts, Split(s)...)
	}
	return strings.Join(parts, Separator)
}

// Encode replaces every document id segment (odd index) with the placeholder
// and joins all segments with the delimiter. A trailing document id is kept.
//
// Encoding is not reversible. A key has no path separator, so encoding a key
// again returns it unchanged, and a path that already carries placeholders
// encodes to the same key as the original path. Raw ids, however, are gone
// once encoded.
func (c Codec) Encode(p string) string {
	segs := Split(p)
	for i := range segs {
		if i%2 == 1 {
			segs[i] = c.Placeholder
		}
	}
	return strings.Join(segs, c.Delimiter)
}

// Key returns the metadata key for p. When p addresses a document the
// trailing placeholder is dropped, so a document and its collection share
// one key.
func (c Codec) Key(p string) string {
	segs := Split(p)
	if len(segs)%2 == 0 && len(segs) > 0 {
		segs = segs[:len(segs)-1]
	}
	return c.Encode(strings.Join(segs, Separator))
}

// Segments splits a metadata key back into its segments.
func (c Codec) Segments(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, c.Delimiter)
}

// Encode encodes p with the default codec.
func Encode(p string) string { return Default.Encode(p) }

// Key returns the metadata key of p with the default codec.
func Key(p string) string { return Default.Key(p) }

// IsDocument reports whether p addresses a document.
func IsDocument(p string) bool {
	n := len(Split(p))
	return n > 0 && n%2 == 0
}

// Parent returns the path without its last segment.
func Parent(p string) string {
	segs := Split(p)
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], Separator)
}

// Name returns the last segment of p.
func Name(p string) string {
	segs := Split(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Depth returns the nesting level of the collection addressed by p: 0 for a
// top-level collection or one of its documents.
func Depth(p string) int {
	n := len(Split(p))
	if n == 0 {
		return 0
	}
	return (n - 1) / 2
}

// ValidateName checks that name can be used as a collection or document
// segment.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	for _, bad := range []string{Separator, KeyDelimiter, StorageSeparator} {
		if strings.Contains(name, bad) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, bad)
		}
	}
	return nil
}

// ValidatePath checks every segment of p.
func ValidatePath(p string) error {
	segs := Split(p)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidName)
	}
	for _, s := range segs {
		if err := ValidateName(s); err != nil {
			return err
		}
	}
	return nil
}
