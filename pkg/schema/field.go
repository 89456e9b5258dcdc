package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
)

// FieldDefinition describes one field of a collection.
type FieldDefinition struct {
	ColumnName string   `json:"column_name" yaml:"column_name"`
	DataType   DataType `json:"data_type" yaml:"data_type"`
	Required   bool     `json:"required" yaml:"required"`
	Disabled   bool     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	IsUnique   bool     `json:"is_unique,omitempty" yaml:"is_unique,omitempty"`

	// validation
	MinLength     *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength     *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Regex         string   `json:"regex,omitempty" yaml:"regex,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`

	// ui
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder  string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Component    Component `json:"component,omitempty" yaml:"component,omitempty"`
	Order        int       `json:"order,omitempty" yaml:"order,omitempty"`
	ShowInTable  bool      `json:"show_in_table,omitempty" yaml:"show_in_table,omitempty"`
	Readonly     bool      `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	HideInCreate bool      `json:"hide_in_create,omitempty" yaml:"hide_in_create,omitempty"`
	HideInEdit   bool      `json:"hide_in_edit,omitempty" yaml:"hide_in_edit,omitempty"`

	// security
	StorageType StorageType  `json:"storage_type,omitempty" yaml:"storage_type,omitempty"`
	Encrypt     bool         `json:"encrypt,omitempty" yaml:"encrypt,omitempty"`
	Mask        bool         `json:"mask,omitempty" yaml:"mask,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	// advanced
	Generated         bool   `json:"generated,omitempty" yaml:"generated,omitempty"`
	Computed          bool   `json:"computed,omitempty" yaml:"computed,omitempty"`
	ComputeExpression string `json:"compute_expression,omitempty" yaml:"compute_expression,omitempty"`
	Audit             bool   `json:"audit,omitempty" yaml:"audit,omitempty"`
	SoftDelete        bool   `json:"soft_delete,omitempty" yaml:"soft_delete,omitempty"`

	// database
	Index         bool              `json:"index,omitempty" yaml:"index,omitempty"`
	PrimaryKey    bool              `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	AutoIncrement bool              `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	ForeignKey    *FieldForeignKey  `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`
	OnDelete      ReferentialAction `json:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate      ReferentialAction `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}

// NewField returns the definition given to a freshly added field.
func NewField(column string) FieldDefinition {
	return FieldDefinition{ColumnName: column, DataType: TypeString}
}

type fieldAlias FieldDefinition

// UnmarshalJSON accepts numeric bounds and order either as numbers or as
// numeric strings; empty strings clear them.
func (f *FieldDefinition) UnmarshalJSON(b []byte) error {
	var raw struct {
		fieldAlias
		MinLength json.RawMessage `json:"min_length"`
		MaxLength json.RawMessage `json:"max_length"`
		MinValue  json.RawMessage `json:"min_value"`
		MaxValue  json.RawMessage `json:"max_value"`
		Order     json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := FieldDefinition(raw.fieldAlias)
	var err error
	if out.MinLength, err = flexInt("min_length", raw.MinLength); err != nil {
		return err
	}
	if out.MaxLength, err = flexInt("max_length", raw.MaxLength); err != nil {
		return err
	}
	if out.MinValue, err = flexFloat("min_value", raw.MinValue); err != nil {
		return err
	}
	if out.MaxValue, err = flexFloat("max_value", raw.MaxValue); err != nil {
		return err
	}
	order, err := flexInt("order", raw.Order)
	if err != nil {
		return err
	}
	if order != nil {
		out.Order = *order
	}
	*f = out
	return nil
}

func flexFloat(name string, raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", name, s)
	}
	return &v, nil
}

func flexInt(name string, raw json.RawMessage) (*int, error) {
	v, err := flexFloat(name, raw)
	if err != nil || v == nil {
		return nil, err
	}
	n := int(*v)
	if float64(n) != *v {
		return nil, fmt.Errorf("%s: %v is not an integer", name, *v)
	}
	return &n, nil
}

// Clone returns a deep copy of f.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	out.MinLength = clonePtr(f.MinLength)
	out.MaxLength = clonePtr(f.MaxLength)
	out.MinValue = clonePtr(f.MinValue)
	out.MaxValue = clonePtr(f.MaxValue)
	out.AllowedValues = slices.Clone(f.AllowedValues)
	if f.Permissions != nil {
		out.Permissions = &Permissions{
			ReadRoles:  slices.Clone(f.Permissions.ReadRoles),
			WriteRoles: slices.Clone(f.Permissions.WriteRoles),
		}
	}
	out.ForeignKey = clonePtr(f.ForeignKey)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// DisplayName returns the label shown for f: its label, or the column name
// in sentence case.
func (f FieldDefinition) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	words := strcase.ToDelimited(f.ColumnName, ' ')
	r, n := utf8.DecodeRuneInString(words)
	if n == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + words[n:]
}

// Protected reports whether the server rewrites the value before storing it.
func (f FieldDefinition) Protected() bool {
	return f.StorageType != StorageNone || f.Encrypt
}

// Check reports problems with the definition itself.
func (f FieldDefinition) Check() error {
	if strings.TrimSpace(f.ColumnName) == "" {
		return fmt.Errorf("column_name is empty")
	}
	if !f.DataType.Valid() {
		return fmt.Errorf("%s: unknown data_type %q", f.ColumnName, f.DataType)
	}
	if !f.StorageType.Valid() {
		return fmt.Errorf("%s: unknown storage_type %q", f.ColumnName, f.StorageType)
	}
	if !f.OnDelete.Valid() || !f.OnUpdate.Valid() {
		return fmt.Errorf("%s: unknown referential action", f.ColumnName)
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return fmt.Errorf("%s: min_length exceeds max_length", f.ColumnName)
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		return fmt.Errorf("%s: min_value exceeds max_value", f.ColumnName)
	}
	return nil
}
