// Package fieldeditor edits the metadata definition of one collection.
//
// An Editor holds the field definitions and table settings loaded for a
// metadata key, tracks the selected field, and writes the whole definition
// back on Save. Two editors saving the same key overwrite each other; the
// last save wins.
package fieldeditor

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

// MetadataSaver persists a definition under a metadata key.
type MetadataSaver interface {
	SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error
}

// Option configures an Editor.
type Option func(*Editor)

// WithColumnLister sets the source of column choices for foreign keys.
func WithColumnLister(l ColumnLister) Option {
	return func(e *Editor) { e.lister = l }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// Editor is not safe for concurrent use, except for the foreign-key editor
// returned by ForeignKeys whose lookups complete in the background.
type Editor struct {
	db       string
	key      string
	table    schema.TableSettings
	fields   schema.Fields
	selected string
	fks      *ForeignKeyEditor
	lister   ColumnLister
	log      *zap.SugaredLogger
}

// New returns an editor for def. The first field is selected.
func New(db, key string, def schema.Definition, opts ...Option) *Editor {
	e := &Editor{
		db:     db,
		key:    key,
		table:  def.Table.Clone(),
		fields: def.Fields.Clone(),
		log:    zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(e)
	}
	e.selected, _ = e.fields.First()
	e.fks = newForeignKeyEditor(db, key, e.table.ForeignKeys, e.lister, e.log)
	e.table.ForeignKeys = nil
	return e
}

// Database returns the database of the edited collection.
func (e *Editor) Database() string { return e.db }

// Key returns the metadata key being edited.
func (e *Editor) Key() string { return e.key }

// Keys returns the field keys in order.
func (e *Editor) Keys() []string { return e.fields.Keys() }

// Len returns the number of fields.
func (e *Editor) Len() int { return e.fields.Len() }

// Field returns a copy of the definition stored under key.
func (e *Editor) Field(key string) (schema.FieldDefinition, bool) {
	f, ok := e.fields.Get(key)
	return f.Clone(), ok
}

// Selected returns the selected field key.
func (e *Editor) Selected() (string, bool) {
	return e.selected, e.selected != ""
}

// Select selects key.
func (e *Editor) Select(key string) error {
	if !e.fields.Has(key) {
		return fmt.Errorf("select %q: %w", key, schema.ErrFieldNotFound)
	}
	e.selected = key
	return nil
}

// Add inserts a new string field named field_<n>, n being one more than the
// current field count and bumped until unused, and selects it.
func (e *Editor) Add() string {
	n := e.fields.Len() + 1
	key := "field_" + strconv.Itoa(n)
	for e.fields.Has(key) {
		n++
		key = "field_" + strconv.Itoa(n)
	}
	e.fields.Set(key, schema.NewField(key))
	e.selected = key
	e.log.Debugw("field added", "key", e.key, "field", key)
	return key
}

// Rename changes the column name of key. The field is stored under the new
// name in the same position, selection follows it, and table settings that
// referenced the old name are updated. Renaming onto another existing field
// fails with schema.ErrFieldExists and changes nothing.
func (e *Editor) Rename(key, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("rename %q: empty column name", key)
	}
	def, ok := e.fields.Get(key)
	if !ok {
		return fmt.Errorf("rename %q: %w", key, schema.ErrFieldNotFound)
	}
	if err := e.fields.Rename(key, newName); err != nil {
		return fmt.Errorf("rename %q: %w", key, err)
	}
	def.ColumnName = newName
	e.fields.Set(newName, def)
	if e.selected == key {
		e.selected = newName
	}
	e.renameRefs(key, newName)
	e.log.Debugw("field renamed", "key", e.key, "from", key, "to", newName)
	return nil
}

func (e *Editor) renameRefs(from, to string) {
	if from == to {
		return
	}
	if e.table.PrimaryKey == from {
		e.table.PrimaryKey = to
	}
	for i, idx := range e.table.Indexes {
		if idx == from {
			e.table.Indexes[i] = to
		}
	}
	e.fks.renameColumn(from, to)
}

// Delete removes key. If it was selected, the first remaining field is
// selected, or none when the map is empty.
func (e *Editor) Delete(key string) error {
	if !e.fields.Delete(key) {
		return fmt.Errorf("delete %q: %w", key, schema.ErrFieldNotFound)
	}
	if e.selected == key {
		e.selected, _ = e.fields.First()
	}
	if e.table.PrimaryKey == key {
		e.table.PrimaryKey = ""
	}
	e.table.Indexes = slices.DeleteFunc(e.table.Indexes, func(s string) bool { return s == key })
	e.log.Debugw("field deleted", "key", e.key, "field", key)
	return nil
}

// Update applies fn to a copy of the field and stores the result. When fn
// changes the column name the field is renamed as Rename does; otherwise it
// stays under key even if key and column name differ.
func (e *Editor) Update(key string, fn func(*schema.FieldDefinition)) error {
	def, ok := e.fields.Get(key)
	if !ok {
		return fmt.Errorf("update %q: %w", key, schema.ErrFieldNotFound)
	}
	def = def.Clone()
	column := def.ColumnName
	fn(&def)
	if def.ColumnName != column {
		renamed := strings.TrimSpace(def.ColumnName)
		if err := e.Rename(key, renamed); err != nil {
			return err
		}
		key = renamed
		def.ColumnName = renamed
	}
	e.fields.Set(key, def)
	return nil
}

// Table returns the table settings including foreign keys.
func (e *Editor) Table() schema.TableSettings {
	t := e.table.Clone()
	t.ForeignKeys = e.fks.Keys()
	return t
}

// SetPrimaryKey sets the primary key column; empty clears it.
func (e *Editor) SetPrimaryKey(key string) error {
	if key != "" && !e.fields.Has(key) {
		return fmt.Errorf("primary key %q: %w", key, schema.ErrFieldNotFound)
	}
	e.table.PrimaryKey = key
	return nil
}

// SetIndexes replaces the indexed columns. Duplicates are dropped.
func (e *Editor) SetIndexes(keys []string) error {
	var out []string
	for _, k := range keys {
		if !e.fields.Has(k) {
			return fmt.Errorf("index %q: %w", k, schema.ErrFieldNotFound)
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	e.table.Indexes = out
	return nil
}

// ToggleIndex adds key to the indexes or removes it.
func (e *Editor) ToggleIndex(key string) error {
	if i := slices.Index(e.table.Indexes, key); i >= 0 {
		e.table.Indexes = slices.Delete(e.table.Indexes, i, i+1)
		return nil
	}
	return e.SetIndexes(append(slices.Clone(e.table.Indexes), key))
}

// SetAudit toggles table auditing.
func (e *Editor) SetAudit(v bool) { e.table.Audit = v }

// SetSoftDelete toggles soft deletion.
func (e *Editor) SetSoftDelete(v bool) { e.table.SoftDelete = v }

// ForeignKeys returns the table's foreign-key editor.
func (e *Editor) ForeignKeys() *ForeignKeyEditor { return e.fks }

// Definition returns a copy of the edited definition.
func (e *Editor) Definition() schema.Definition {
	return schema.Definition{Table: e.Table(), Fields: e.fields.Clone()}
}

// Save checks the definition and writes it under the editor's key,
// replacing whatever was stored.
func (e *Editor) Save(ctx context.Context, s MetadataSaver) error {
	def := e.Definition()
	if err := def.Check(); err != nil {
		return fmt.Errorf("save %s: %w", e.key, err)
	}
	if err := s.SaveMetadata(ctx, e.db, e.key, def); err != nil {
		return fmt.Errorf("save %s: %w", e.key, err)
	}
	e.log.Infow("metadata saved", "db", e.db, "key", e.key, "fields", def.Fields.Len())
	return nil
}
