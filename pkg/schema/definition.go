package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ForeignKey is a table-level reference from a column to another collection.
type ForeignKey struct {
	Column           string `json:"column" yaml:"column"`
	ReferencesTable  string `json:"references_table" yaml:"references_table"`
	ReferencesColumn string `json:"references_column" yaml:"references_column"`
}

// TableSettings holds collection-wide schema options.
type TableSettings struct {
	PrimaryKey  string       `json:"primary_key" yaml:"primary_key"`
	Indexes     []string     `json:"indexes" yaml:"indexes"`
	ForeignKeys []ForeignKey `json:"foreign_keys" yaml:"foreign_keys"`
	Audit       bool         `json:"audit" yaml:"audit"`
	SoftDelete  bool         `json:"soft_delete" yaml:"soft_delete"`
}

// Clone returns a deep copy of t with nil lists replaced by empty ones.
func (t TableSettings) Clone() TableSettings {
	out := t
	out.Indexes = append([]string{}, t.Indexes...)
	out.ForeignKeys = append([]ForeignKey{}, t.ForeignKeys...)
	return out
}

// Definition is the metadata document stored under one key.
type Definition struct {
	Table  TableSettings `json:"table" yaml:"table"`
	Fields Fields        `json:"fields" yaml:"fields"`
}

// Clone returns a deep copy of d.
func (d Definition) Clone() Definition {
	return Definition{Table: d.Table.Clone(), Fields: d.Fields.Clone()}
}

// Check validates every field definition and that table settings only
// reference existing fields.
func (d Definition) Check() error {
	var errs []error
	for k, f := range d.Fields.All() {
		if err := f.Check(); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", k, err))
		}
	}
	if pk := d.Table.PrimaryKey; pk != "" && !d.Fields.Has(pk) {
		errs = append(errs, fmt.Errorf("primary_key %q: %w", pk, ErrFieldNotFound))
	}
	for _, idx := range d.Table.Indexes {
		if !d.Fields.Has(idx) {
			errs = append(errs, fmt.Errorf("index %q: %w", idx, ErrFieldNotFound))
		}
	}
	for i, fk := range d.Table.ForeignKeys {
		if fk.Column != "" && !d.Fields.Has(fk.Column) {
			errs = append(errs, fmt.Errorf("foreign_keys[%d] column %q: %w", i, fk.Column, ErrFieldNotFound))
		}
	}
	return errors.Join(errs...)
}

// ColumnNames returns the column names in field order.
func (d Definition) ColumnNames() []string {
	var out []string
	for _, f := range d.Fields.All() {
		out = append(out, f.ColumnName)
	}
	return out
}

// Envelope is the wire form of metadata: the definition keyed by its metadata key.
type Envelope map[string]Definition

// EncodeEnvelope returns {key: def}.
func EncodeEnvelope(key string, def Definition) ([]byte, error) {
	return json.Marshal(Envelope{key: def})
}

// DecodeEnvelope extracts the definition for key from b. Both {key: def} and
// a bare {table, fields} document are accepted.
func DecodeEnvelope(b []byte, key string) (Definition, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Definition{}, fmt.Errorf("decode metadata: %w", err)
	}
	body, ok := raw[key]
	if !ok {
		_, hasFields := raw["fields"]
		_, hasTable := raw["table"]
		if !hasFields && !hasTable {
			keys := make([]string, 0, len(raw))
			for k := range raw {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			return Definition{}, fmt.Errorf("decode metadata: no definition for %q (got %v)", key, keys)
		}
		body = b
	}
	var def Definition
	if err := json.Unmarshal(body, &def); err != nil {
		return Definition{}, fmt.Errorf("decode metadata %q: %w", key, err)
	}
	def.Table = def.Table.Clone()
	return def, nil
}
