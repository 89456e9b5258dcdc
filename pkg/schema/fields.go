package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// ErrFieldExists is returned when a field key is already taken.
var ErrFieldExists = errors.New("field already exists")

// ErrFieldNotFound is returned for an unknown field key.
var ErrFieldNotFound = errors.New("field not found")

// Fields maps field keys to definitions and keeps insertion order, which is
// also the order of the JSON object it was decoded from. The zero value is an
// empty map ready to use.
type Fields struct {
	m *orderedmap.OrderedMap[string, FieldDefinition]
}

// NewFields returns a map holding defs in order, keyed by column name.
func NewFields(defs ...FieldDefinition) Fields {
	var f Fields
	for _, d := range defs {
		f.Set(d.ColumnName, d)
	}
	return f
}

func (f *Fields) init() {
	if f.m == nil {
		f.m = orderedmap.New[string, FieldDefinition]()
	}
}

// Len returns the number of fields.
func (f Fields) Len() int {
	if f.m == nil {
		return 0
	}
	return f.m.Len()
}

// Get returns the definition stored under key.
func (f Fields) Get(key string) (FieldDefinition, bool) {
	if f.m == nil {
		return FieldDefinition{}, false
	}
	return f.m.Get(key)
}

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Set stores def under key. A new key is appended; an existing one keeps its
// position.
func (f *Fields) Set(key string, def FieldDefinition) {
	f.init()
	f.m.Set(key, def)
}

// Delete removes key and reports whether it was present.
func (f *Fields) Delete(key string) bool {
	if f.m == nil {
		return false
	}
	_, ok := f.m.Delete(key)
	return ok
}

// Rename moves the definition under oldKey to newKey in the same position.
// It fails if newKey is already used by another field.
func (f *Fields) Rename(oldKey, newKey string) error {
	def, ok := f.Get(oldKey)
	if !ok {
		return fmt.Errorf("%q: %w", oldKey, ErrFieldNotFound)
	}
	if oldKey == newKey {
		return nil
	}
	if f.Has(newKey) {
		return fmt.Errorf("%q: %w", newKey, ErrFieldExists)
	}
	f.m.Set(newKey, def)
	if err := f.m.MoveBefore(newKey, oldKey); err != nil {
		return err
	}
	f.m.Delete(oldKey)
	return nil
}

// First returns the first key in order.
func (f Fields) First() (string, bool) {
	if f.m == nil {
		return "", false
	}
	p := f.m.Oldest()
	if p == nil {
		return "", false
	}
	return p.Key, true
}

// Keys returns the keys in order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, f.Len())
	for k := range f.All() {
		keys = append(keys, k)
	}
	return keys
}

// All yields key/definition pairs in order.
func (f Fields) All() iter.Seq2[string, FieldDefinition] {
	return func(yield func(string, FieldDefinition) bool) {
		if f.m == nil {
			return
		}
		for p := f.m.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	var out Fields
	for k, v := range f.All() {
		out.Set(k, v.Clone())
	}
	return out
}

func (f Fields) MarshalJSON() ([]byte, error) {
	if f.m == nil {
		return []byte("{}"), nil
	}
	return f.m.MarshalJSON()
}

func (f *Fields) UnmarshalJSON(b []byte) error {
	m := orderedmap.New[string, FieldDefinition]()
	if string(b) != "null" {
		if err := m.UnmarshalJSON(b); err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
	}
	f.m = m
	return nil
}

func (f Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for k, v := range f.All() {
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &val)
	}
	return node, nil
}

func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields: expected a mapping, got line %d", node.Line)
	}
	out := Fields{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var def FieldDefinition
		if err := node.Content[i+1].Decode(&def); err != nil {
			return fmt.Errorf("field %q: %w", node.Content[i].Value, err)
		}
		out.Set(node.Content[i].Value, def)
	}
	*f = out
	return nil
}

var _ json.Marshaler = Fields{}
