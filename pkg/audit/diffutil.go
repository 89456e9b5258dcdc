// Package audit compares metadata definitions for review and history.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

// NormalizeJSON indents b with sorted keys so equal documents compare equal.
// Input that is not JSON is returned unchanged.
func NormalizeJSON(b []byte) string {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return string(b)
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
	return strings.TrimRight(buf.String(), "\n")
}

// UnifiedDiff returns a unified diff of two JSON documents and the number of
// added and removed key lines. Lines without a '":' are not counted.
func UnifiedDiff(beforeJSON, afterJSON []byte) (unified string, added, removed int) {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(NormalizeJSON(beforeJSON) + "\n"),
		B:        difflib.SplitLines(NormalizeJSON(afterJSON) + "\n"),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}
	unified, _ = difflib.GetUnifiedDiffString(d)
	added, removed = countChanges(unified)
	return unified, added, removed
}

func countChanges(unified string) (add, del int) {
	sc := bufio.NewScanner(strings.NewReader(unified))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") || !strings.Contains(line, `":`) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			add++
		case strings.HasPrefix(line, "-"):
			del++
		}
	}
	return add, del
}

// Change describes how a definition differs from the stored one.
type Change struct {
	Diff    string
	Added   int
	Removed int
	// Field keys by kind of change, in definition order.
	NewFields     []string
	DroppedFields []string
	EditedFields  []string
	Table         bool
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool { return c.Diff == "" }

// Summary lists the changed fields, e.g. "+title -body ~age table".
func (c Change) Summary() string {
	var parts []string
	for _, k := range c.NewFields {
		parts = append(parts, "+"+k)
	}
	for _, k := range c.DroppedFields {
		parts = append(parts, "-"+k)
	}
	for _, k := range c.EditedFields {
		parts = append(parts, "~"+k)
	}
	if c.Table {
		parts = append(parts, "table")
	}
	return strings.Join(parts, " ")
}

// Definitions compares before (nil when undefined) with after.
func Definitions(before *schema.Definition, after schema.Definition) (Change, error) {
	var prev schema.Definition
	beforeJSON := []byte("{}")
	if before != nil {
		prev = before.Clone()
		b, err := json.Marshal(prev)
		if err != nil {
			return Change{}, fmt.Errorf("marshal stored definition: %w", err)
		}
		beforeJSON = b
	}
	next := after.Clone()
	afterJSON, err := json.Marshal(next)
	if err != nil {
		return Change{}, fmt.Errorf("marshal definition: %w", err)
	}
	var c Change
	if NormalizeJSON(beforeJSON) == NormalizeJSON(afterJSON) {
		return c, nil
	}
	c.Diff, c.Added, c.Removed = UnifiedDiff(beforeJSON, afterJSON)

	for k, f := range next.Fields.All() {
		old, ok := prev.Fields.Get(k)
		switch {
		case !ok:
			c.NewFields = append(c.NewFields, k)
		case !sameJSON(old, f):
			c.EditedFields = append(c.EditedFields, k)
		}
	}
	for k := range prev.Fields.All() {
		if !next.Fields.Has(k) {
			c.DroppedFields = append(c.DroppedFields, k)
		}
	}
	c.Table = before != nil && !sameJSON(prev.Table, next.Table)
	return c, nil
}

func sameJSON(a, b any) bool {
	x, err1 := json.Marshal(a)
	y, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(x, y)
}
