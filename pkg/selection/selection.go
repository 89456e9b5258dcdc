// Package selection holds the explorer's navigation state.
//
// State is an immutable value. The only way to change it is Reduce, which
// also recomputes the displayed path, so a state never carries a path that
// disagrees with its selection.
package selection

import (
	"fmt"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/doctree"
)

// Status is the kind of item selected.
type Status int

const (
	NoneSelected Status = iota
	CollectionSelected
	DocumentSelected
)

func (s Status) String() string {
	switch s {
	case CollectionSelected:
		return "collection"
	case DocumentSelected:
		return "document"
	default:
		return "none"
	}
}

// State is the current database and selected collection or document.
type State struct {
	database   string
	status     Status
	collection doctree.CollectionRef
	document   doctree.DocumentRef
	path       string
}

// Database returns the open database, empty for the local demo tree.
func (s State) Database() string { return s.database }

// Status returns what is selected.
func (s State) Status() Status { return s.status }

// Collection returns the selected collection, or the owning collection of the
// selected document.
func (s State) Collection() (doctree.CollectionRef, bool) {
	return s.collection, s.status != NoneSelected
}

// Document returns the selected document.
func (s State) Document() (doctree.DocumentRef, bool) {
	return s.document, s.status == DocumentSelected
}

// Path returns the displayed path: the selected document, else the selected
// collection, else the database root. Paths are shown as explorer routes when
// a database is open.
func (s State) Path() string { return s.path }

// Target returns the tree path of the selection, empty when nothing is selected.
func (s State) Target() string {
	switch s.status {
	case DocumentSelected:
		return s.document.Path
	case CollectionSelected:
		return s.collection.Path
	}
	return ""
}

// MetadataKey returns the schema key shared by the selection's collection.
func (s State) MetadataKey() string {
	return docpath.Key(s.Target())
}

// Action is an input to Reduce.
type Action interface{ action() }

// OpenDatabase switches to a database.
type OpenDatabase struct{ Name string }

// SelectCollection selects a collection and clears any document.
type SelectCollection struct{ Collection doctree.CollectionRef }

// SelectDocument selects a document. Parent is derived from the document path
// when left empty.
type SelectDocument struct {
	Document doctree.DocumentRef
	Parent   doctree.CollectionRef
}

// Clear drops the selection but keeps the database.
type Clear struct{}

func (OpenDatabase) action()     {}
func (SelectCollection) action() {}
func (SelectDocument) action()   {}
func (Clear) action()            {}

// Reduce returns the state that follows s after a.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case OpenDatabase:
		if a.Name == s.database {
			return s
		}
		s = State{database: a.Name}
	case SelectCollection:
		c := a.Collection
		c.Path = docpath.Join(c.Path)
		if c.Name == "" {
			c.Name = docpath.Name(c.Path)
		}
		s.status = CollectionSelected
		s.collection = c
		s.document = doctree.DocumentRef{}
	case SelectDocument:
		d := a.Document
		d.Path = docpath.Join(d.Path)
		if d.ID == "" {
			d.ID = docpath.Name(d.Path)
		}
		p := a.Parent
		if p.Path == "" {
			p.Path = docpath.Parent(d.Path)
		}
		if p.Name == "" {
			p.Name = docpath.Name(p.Path)
		}
		s.status = DocumentSelected
		s.collection = p
		s.document = d
	case Clear:
		s.status = NoneSelected
		s.collection = doctree.CollectionRef{}
		s.document = doctree.DocumentRef{}
	default:
		return s
	}
	s.path = displayPath(s)
	return s
}

// Apply folds actions over s.
func Apply(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

func displayPath(s State) string {
	t := s.Target()
	if s.database == "" {
		return t
	}
	return docpath.Route(s.database, t)
}

// FromRoute rebuilds the state addressed by an explorer route such as
// /database/app/users/u1.
func FromRoute(route string) (State, error) {
	db, p, err := docpath.ParseRoute(route)
	if err != nil {
		return State{}, err
	}
	s := Reduce(State{}, OpenDatabase{Name: db})
	if p == "" {
		return s, nil
	}
	if err := docpath.ValidatePath(p); err != nil {
		return State{}, fmt.Errorf("route %q: %w", route, err)
	}
	if docpath.IsDocument(p) {
		return Reduce(s, SelectDocument{Document: doctree.DocumentRef{Path: p}}), nil
	}
	return Reduce(s, SelectCollection{Collection: doctree.CollectionRef{Path: p}}), nil
}

// FromNode returns the action selecting a walked tree node.
func FromNode(n doctree.Node) Action {
	if n.Kind == doctree.KindDocument {
		sel := n.Selection()
		return SelectDocument{Document: sel.Document, Parent: sel.Parent}
	}
	return SelectCollection{Collection: n.CollectionRef()}
}
