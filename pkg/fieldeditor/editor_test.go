package fieldeditor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

func sampleDef() schema.Definition {
	def := schema.Definition{Fields: schema.NewFields(
		schema.FieldDefinition{ColumnName: "name", DataType: schema.TypeString, Required: true},
		schema.FieldDefinition{ColumnName: "age", DataType: schema.TypeInt},
		schema.FieldDefinition{ColumnName: "email", DataType: schema.TypeEmail},
	)}
	def.Table = schema.TableSettings{
		PrimaryKey:  "name",
		Indexes:     []string{"age"},
		ForeignKeys: []schema.ForeignKey{{Column: "age", ReferencesTable: "people", ReferencesColumn: "years"}},
	}
	return def
}

func TestNewSelectsFirst(t *testing.T) {
	e := New("app", "users", sampleDef())
	if sel, ok := e.Selected(); !ok || sel != "name" {
		t.Fatalf("selected = %q %v", sel, ok)
	}
	empty := New("app", "users", schema.Definition{})
	if _, ok := empty.Selected(); ok {
		t.Fatal("empty editor has a selection")
	}
}

func TestAdd(t *testing.T) {
	e := New("app", "users", sampleDef())
	key := e.Add()
	if key != "field_4" {
		t.Fatalf("key = %q", key)
	}
	if sel, _ := e.Selected(); sel != key {
		t.Fatalf("selected = %q", sel)
	}
	f, _ := e.Field(key)
	if f.DataType != schema.TypeString || f.Required || f.ColumnName != key {
		t.Fatalf("new field = %+v", f)
	}

	// field_<n> is bumped past existing names.
	e2 := New("app", "x", schema.Definition{Fields: schema.NewFields(schema.NewField("field_2"))})
	if got := e2.Add(); got != "field_3" {
		t.Fatalf("bumped key = %q", got)
	}
}

func TestDelete(t *testing.T) {
	e := New("app", "users", sampleDef())
	_ = e.Select("age")
	if err := e.Delete("email"); err != nil {
		t.Fatal(err)
	}
	if sel, _ := e.Selected(); sel != "age" {
		t.Fatalf("deleting another field moved the selection to %q", sel)
	}
	if err := e.Delete("age"); err != nil {
		t.Fatal(err)
	}
	if sel, _ := e.Selected(); sel != "name" {
		t.Fatalf("fallback selection = %q", sel)
	}
	if got := e.Table().Indexes; len(got) != 0 {
		t.Fatalf("index kept for deleted field: %v", got)
	}
	if err := e.Delete("name"); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Selected(); ok {
		t.Fatal("selection should be empty")
	}
	if e.Table().PrimaryKey != "" {
		t.Fatal("primary key kept for deleted field")
	}
	if err := e.Delete("name"); !errors.Is(err, schema.ErrFieldNotFound) {
		t.Fatalf("delete missing = %v", err)
	}
}

func TestRename(t *testing.T) {
	e := New("app", "users", sampleDef())
	_ = e.Select("age")
	if err := e.Rename("age", "years"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"name", "years", "email"}, e.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if sel, _ := e.Selected(); sel != "years" {
		t.Fatalf("selection = %q", sel)
	}
	f, _ := e.Field("years")
	if f.ColumnName != "years" || f.DataType != schema.TypeInt {
		t.Fatalf("renamed field = %+v", f)
	}
	tbl := e.Table()
	if tbl.Indexes[0] != "years" || tbl.ForeignKeys[0].Column != "years" {
		t.Fatalf("table refs not renamed: %+v", tbl)
	}
}

func TestRenameCollision(t *testing.T) {
	e := New("app", "users", sampleDef())
	before := e.Definition()
	err := e.Rename("age", "email")
	if !errors.Is(err, schema.ErrFieldExists) {
		t.Fatalf("err = %v", err)
	}
	if diff := cmp.Diff(before.Fields.Keys(), e.Keys()); diff != "" {
		t.Fatalf("keys changed (-want +got):\n%s", diff)
	}
	f, _ := e.Field("email")
	if f.DataType != schema.TypeEmail {
		t.Fatal("collision overwrote the existing field")
	}
}

func TestUpdateAndSetAttr(t *testing.T) {
	e := New("app", "users", sampleDef())
	if err := e.Update("age", func(f *schema.FieldDefinition) { f.Required = true }); err != nil {
		t.Fatal(err)
	}
	if f, _ := e.Field("age"); !f.Required {
		t.Fatal("update not applied")
	}
	if err := e.SetAttr("age", "min_value", "18"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetAttr("email", "allowed_values", "a@x.io,b@x.io"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetAttr("name", "column_name", "full_name"); err != nil {
		t.Fatal(err)
	}
	if f, _ := e.Field("age"); f.MinValue == nil || *f.MinValue != 18 {
		t.Fatalf("min_value = %v", f.MinValue)
	}
	if f, _ := e.Field("email"); len(f.AllowedValues) != 2 {
		t.Fatalf("allowed = %v", f.AllowedValues)
	}
	if e.Table().PrimaryKey != "full_name" {
		t.Fatalf("primary key = %q", e.Table().PrimaryKey)
	}
	if err := e.SetAttr("age", "colour", "x"); err == nil {
		t.Fatal("unknown attribute accepted")
	}
}

func TestUpdateKeepsKeyDistinctFromColumnName(t *testing.T) {
	for _, tc := range []struct {
		name   string
		fields []string
	}{
		{"colliding column", []string{"f1", "title"}},
		{"free column", []string{"f1", "body"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var fields schema.Fields
			fields.Set("f1", schema.FieldDefinition{ColumnName: "title", DataType: schema.TypeString})
			fields.Set(tc.fields[1], schema.FieldDefinition{ColumnName: "Other", DataType: schema.TypeText})
			e := New("app", "posts", schema.Definition{Fields: fields})

			if err := e.Update("f1", func(f *schema.FieldDefinition) { f.Required = true }); err != nil {
				t.Fatal(err)
			}
			if err := e.SetAttr("f1", "label", "Title"); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.fields, e.Keys()); diff != "" {
				t.Fatalf("keys (-want +got):\n%s", diff)
			}
			f, ok := e.Field("f1")
			if !ok || !f.Required || f.Label != "Title" || f.ColumnName != "title" {
				t.Fatalf("field = %+v %v", f, ok)
			}
			if sel, _ := e.Selected(); sel != "f1" {
				t.Fatalf("selected = %q", sel)
			}
		})
	}
}

func TestTableSettings(t *testing.T) {
	e := New("app", "users", sampleDef())
	if err := e.SetIndexes([]string{"name", "name", "email"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"name", "email"}, e.Table().Indexes); diff != "" {
		t.Fatalf("indexes (-want +got):\n%s", diff)
	}
	if err := e.SetIndexes([]string{"nope"}); !errors.Is(err, schema.ErrFieldNotFound) {
		t.Fatalf("unknown index = %v", err)
	}
	_ = e.ToggleIndex("name")
	_ = e.ToggleIndex("age")
	if diff := cmp.Diff([]string{"email", "age"}, e.Table().Indexes); diff != "" {
		t.Fatalf("toggled (-want +got):\n%s", diff)
	}
	if err := e.SetPrimaryKey("nope"); err == nil {
		t.Fatal("unknown primary key accepted")
	}
	e.SetAudit(true)
	e.SetSoftDelete(true)
	if tbl := e.Table(); !tbl.Audit || !tbl.SoftDelete {
		t.Fatalf("flags = %+v", tbl)
	}
}

type recordingSaver struct {
	db, key string
	def     schema.Definition
	calls   int
}

func (s *recordingSaver) SaveMetadata(_ context.Context, db, key string, def schema.Definition) error {
	s.db, s.key, s.def = db, key, def
	s.calls++
	return nil
}

func TestSave(t *testing.T) {
	e := New("app", "users$:_doc_id$posts", sampleDef())
	e.Add()
	var s recordingSaver
	if err := e.Save(context.Background(), &s); err != nil {
		t.Fatal(err)
	}
	if s.calls != 1 || s.db != "app" || s.key != "users$:_doc_id$posts" {
		t.Fatalf("saver = %+v", s)
	}
	if s.def.Fields.Len() != 4 || len(s.def.Table.ForeignKeys) != 1 {
		t.Fatalf("saved def = %+v", s.def)
	}
	// The saved copy is detached from the editor.
	e.Add()
	if s.def.Fields.Len() != 4 {
		t.Fatal("saved definition shares state with the editor")
	}
}

func TestDefinitionIsCopy(t *testing.T) {
	def := sampleDef()
	e := New("app", "users", def)
	e.Add()
	if def.Fields.Len() != 3 {
		t.Fatal("editor mutated the loaded definition")
	}
}

// gatedLister answers each table only when its gate is closed.
type gatedLister struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	cols  map[string][]string
}

func (l *gatedLister) Columns(ctx context.Context, _, table string) ([]string, error) {
	l.mu.Lock()
	gate := l.gates[table]
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if table == "broken" {
		return nil, errors.New("boom")
	}
	return l.cols[table], nil
}

func TestForeignKeyStaleLookupDropped(t *testing.T) {
	slow := make(chan struct{})
	l := &gatedLister{
		gates: map[string]chan struct{}{"orders": slow},
		cols:  map[string][]string{"orders": {"order_id"}, "products": {"sku", "price"}},
	}
	e := New("app", "users", schema.Definition{}, WithColumnLister(l))
	fks := e.ForeignKeys()
	i := fks.Add()
	ctx := context.Background()

	if err := fks.SetReferencesTable(ctx, i, "orders"); err != nil {
		t.Fatal(err)
	}
	if c, _ := fks.Columns(i); !c.Loading {
		t.Fatal("lookup should be loading")
	}
	if err := fks.SetReferencesTable(ctx, i, "products"); err != nil {
		t.Fatal(err)
	}
	close(slow)
	fks.Wait()

	c, err := fks.Columns(i)
	if err != nil {
		t.Fatal(err)
	}
	if c.Table != "products" || c.Loading {
		t.Fatalf("choices = %+v", c)
	}
	if diff := cmp.Diff([]string{"sku", "price"}, c.Columns); diff != "" {
		t.Fatalf("stale columns applied (-want +got):\n%s", diff)
	}
}

func TestForeignKeyRows(t *testing.T) {
	l := &gatedLister{cols: map[string][]string{"orders": {"id"}}}
	e := New("app", "users", sampleDef(), WithColumnLister(l))
	fks := e.ForeignKeys()
	i := fks.Add()
	_ = fks.SetColumn(i, "email")
	_ = fks.SetReferencesTable(context.Background(), i, "broken")
	fks.Wait()
	if c, _ := fks.Columns(i); c.Err == nil || c.Loading {
		t.Fatalf("error not recorded: %+v", c)
	}
	_ = fks.SetReferencesTable(context.Background(), i, "orders")
	fks.Wait()
	_ = fks.SetReferencesColumn(i, "id")

	want := []schema.ForeignKey{
		{Column: "age", ReferencesTable: "people", ReferencesColumn: "years"},
		{Column: "email", ReferencesTable: "orders", ReferencesColumn: "id"},
	}
	if diff := cmp.Diff(want, e.Table().ForeignKeys); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if err := fks.Remove(0); err != nil {
		t.Fatal(err)
	}
	if fks.Len() != 1 || fks.Keys()[0].Column != "email" {
		t.Fatalf("after remove: %+v", fks.Keys())
	}
	if err := fks.Remove(5); err == nil {
		t.Fatal("out of range accepted")
	}
}

type staticCollections []string

func (s staticCollections) ListCollections(context.Context, string) ([]string, error) {
	return s, nil
}

func TestTableChoices(t *testing.T) {
	e := New("app", "users", schema.Definition{})
	got, err := e.ForeignKeys().TableChoices(context.Background(),
		staticCollections{"users", "orders", "metadata_schemas", "fe_metadata", "users.u1.posts", "products"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"orders", "products"}, got); diff != "" {
		t.Fatalf("choices (-want +got):\n%s", diff)
	}
}
