package fieldeditor

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// ColumnLister returns the field keys defined for a collection, given its
// storage name. A collection without metadata has no columns.
type ColumnLister interface {
	Columns(ctx context.Context, db, table string) ([]string, error)
}

// CollectionLister lists the storage names of a database's collections.
type CollectionLister interface {
	ListCollections(ctx context.Context, db string) ([]string, error)
}

// Collections that hold metadata themselves and are never offered as targets.
var systemCollections = []string{"metadata_schemas", "fe_metadata"}

// ColumnChoices is the lookup state of one foreign-key row.
type ColumnChoices struct {
	Table   string
	Columns []string
	Loading bool
	Err     error
}

type fkRow struct {
	id  uint64
	key schema.ForeignKey
	seq uint64
	ColumnChoices
}

// ForeignKeyEditor edits the ordered foreign-key list of a table. Changing a
// row's referenced table starts a column lookup in the background. Each
// lookup is stamped with a sequence number and a response is applied only if
// it belongs to the row's latest lookup, so a slow answer for a previously
// chosen table never replaces the columns of the current one.
type ForeignKeyEditor struct {
	db      string
	current string
	lister  ColumnLister
	log     *zap.SugaredLogger

	mu      sync.Mutex
	rows    []*fkRow
	nextID  uint64
	nextSeq uint64
	wg      sync.WaitGroup
	notify  func()
}

func newForeignKeyEditor(db, key string, keys []schema.ForeignKey, l ColumnLister, log *zap.SugaredLogger) *ForeignKeyEditor {
	f := &ForeignKeyEditor{db: db, current: currentTable(key), lister: l, log: log}
	for _, k := range keys {
		f.nextID++
		f.rows = append(f.rows, &fkRow{id: f.nextID, key: k, ColumnChoices: ColumnChoices{Table: k.ReferencesTable}})
	}
	return f
}

// currentTable returns the storage name of the collection a key describes.
func currentTable(key string) string {
	segs := docpath.Default.Segments(key)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// OnUpdate registers fn to be called after a lookup result is applied.
func (f *ForeignKeyEditor) OnUpdate(fn func()) {
	f.mu.Lock()
	f.notify = fn
	f.mu.Unlock()
}

// Len returns the number of rows.
func (f *ForeignKeyEditor) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// Keys returns a copy of the rows.
func (f *ForeignKeyEditor) Keys() []schema.ForeignKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schema.ForeignKey, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.key
	}
	return out
}

// Add appends a blank row and returns its index.
func (f *ForeignKeyEditor) Add() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows = append(f.rows, &fkRow{id: f.nextID})
	return len(f.rows) - 1
}

// Remove deletes row i. A lookup still running for it is discarded.
func (f *ForeignKeyEditor) Remove(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(i); err != nil {
		return err
	}
	f.rows = slices.Delete(f.rows, i, i+1)
	return nil
}

// SetColumn sets the local column of row i.
func (f *ForeignKeyEditor) SetColumn(i int, column string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(i); err != nil {
		return err
	}
	f.rows[i].key.Column = column
	return nil
}

// SetReferencesColumn sets the referenced column of row i.
func (f *ForeignKeyEditor) SetReferencesColumn(i int, column string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(i); err != nil {
		return err
	}
	f.rows[i].key.ReferencesColumn = column
	return nil
}

// SetReferencesTable sets the referenced table of row i, clears its
// referenced column and starts loading the table's columns.
func (f *ForeignKeyEditor) SetReferencesTable(ctx context.Context, i int, table string) error {
	f.mu.Lock()
	if err := f.check(i); err != nil {
		f.mu.Unlock()
		return err
	}
	r := f.rows[i]
	r.key.ReferencesTable = table
	r.key.ReferencesColumn = ""
	f.nextSeq++
	r.seq = f.nextSeq
	r.ColumnChoices = ColumnChoices{Table: table, Loading: f.lister != nil && table != ""}
	id, seq, lister, loading := r.id, r.seq, f.lister, r.Loading
	f.mu.Unlock()

	if !loading {
		return nil
	}
	f.wg.Go(func() {
		cols, err := lister.Columns(ctx, f.db, table)
		f.apply(id, seq, cols, err)
	})
	return nil
}

func (f *ForeignKeyEditor) apply(id, seq uint64, cols []string, err error) {
	f.mu.Lock()
	idx := slices.IndexFunc(f.rows, func(r *fkRow) bool { return r.id == id })
	if idx < 0 || f.rows[idx].seq != seq {
		f.mu.Unlock()
		f.log.Debugw("stale column lookup dropped", "row", id, "seq", seq)
		return
	}
	r := f.rows[idx]
	r.Loading = false
	r.Columns = cols
	r.Err = err
	if err != nil {
		f.log.Warnw("column lookup failed", "db", f.db, "table", r.Table, "err", err)
	}
	notify := f.notify
	f.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Columns returns the column choices of row i.
func (f *ForeignKeyEditor) Columns(i int) (ColumnChoices, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(i); err != nil {
		return ColumnChoices{}, err
	}
	c := f.rows[i].ColumnChoices
	c.Columns = slices.Clone(c.Columns)
	return c, nil
}

// Wait blocks until every started lookup has finished.
func (f *ForeignKeyEditor) Wait() { f.wg.Wait() }

// TableChoices lists the collections a foreign key may reference: every
// top-level collection except metadata stores and the edited one.
func (f *ForeignKeyEditor) TableChoices(ctx context.Context, l CollectionLister) ([]string, error) {
	names, err := l.ListCollections(ctx, f.db)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if docpath.IsNested(n) || n == f.current || slices.Contains(systemCollections, n) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *ForeignKeyEditor) renameColumn(from, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.key.Column == from {
			r.key.Column = to
		}
	}
}

func (f *ForeignKeyEditor) check(i int) error {
	if i < 0 || i >= len(f.rows) {
		return fmt.Errorf("foreign key %d: out of range (%d rows)", i, len(f.rows))
	}
	return nil
}
