package views

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/faciam-dev/docmeta/pkg/docpath"
)

// ListState is a loaded list of names.
type ListState struct {
	Names   []string
	Loading bool
	Err     string
	Status  string
}

// DatabaseList lists databases and creates new ones.
type DatabaseList struct {
	api API

	mu    sync.Mutex
	state ListState
}

func NewDatabaseList(api API) *DatabaseList {
	return &DatabaseList{api: api, state: ListState{Loading: true}}
}

// State returns a copy of the current state.
func (v *DatabaseList) State() ListState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Load fetches the database names.
func (v *DatabaseList) Load(ctx context.Context) {
	v.mu.Lock()
	v.state.Loading, v.state.Err = true, ""
	v.mu.Unlock()

	names, err := v.api.ListDatabases(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Loading = false
	if err != nil {
		v.state.Err = Message(err)
		return
	}
	v.state.Names = names
}

// Create creates db if absent and reloads the list.
func (v *DatabaseList) Create(ctx context.Context, db string) error {
	db = strings.TrimSpace(db)
	if err := docpath.ValidateName(db); err != nil {
		v.mu.Lock()
		v.state.Status = "Error: " + err.Error()
		v.mu.Unlock()
		return err
	}
	created, err := v.api.CreateDatabase(ctx, db)
	v.mu.Lock()
	switch {
	case err != nil:
		v.state.Status = "Error: " + Message(err)
	case created:
		v.state.Status = fmt.Sprintf("Database '%s' created successfully.", db)
	default:
		v.state.Status = fmt.Sprintf("Database '%s' already exists.", db)
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.Load(ctx)
	return nil
}

// CollectionList lists the top-level collections of a database.
type CollectionList struct {
	api API
	db  string

	mu    sync.Mutex
	state ListState
}

func NewCollectionList(api API, db string) *CollectionList {
	return &CollectionList{api: api, db: db, state: ListState{Loading: true}}
}

// Database returns the listed database.
func (v *CollectionList) Database() string { return v.db }

// State returns a copy of the current state.
func (v *CollectionList) State() ListState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Load fetches the collection names. Sub-collections, which the API reports
// with dotted storage names, are left out.
func (v *CollectionList) Load(ctx context.Context) {
	v.mu.Lock()
	v.state.Loading, v.state.Err = true, ""
	v.mu.Unlock()

	names, err := v.api.ListCollections(ctx, v.db)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Loading = false
	if err != nil {
		v.state.Err = Message(err)
		return
	}
	top := make([]string, 0, len(names))
	for _, n := range names {
		if !docpath.IsNested(n) {
			top = append(top, n)
		}
	}
	v.state.Names = top
}

// Create creates a top-level collection and reloads the list.
func (v *CollectionList) Create(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := docpath.ValidateName(name); err != nil {
		v.mu.Lock()
		v.state.Status = "Error: " + err.Error()
		v.mu.Unlock()
		return err
	}
	err := v.api.CreateCollection(ctx, v.db, name)
	v.mu.Lock()
	if err != nil {
		v.state.Status = "Error: " + Message(err)
	} else {
		v.state.Status = fmt.Sprintf("Collection '%s' created successfully.", name)
	}
	v.mu.Unlock()
	v.Load(ctx)
	return err
}
