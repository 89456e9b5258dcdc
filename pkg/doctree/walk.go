package doctree

import (
	"iter"
	"maps"
	"slices"
)

// Kind distinguishes collection and document nodes.
type Kind int

const (
	KindCollection Kind = iota
	KindDocument
)

func (k Kind) String() string {
	if k == KindDocument {
		return "document"
	}
	return "collection"
}

// Node is one line of a rendered tree. Depth is the indentation level only.
type Node struct {
	Kind       Kind
	Name       string
	Path       string
	Depth      int
	Collection *Collection
	Document   *Document
	// Parent is the collection owning Document.
	Parent *Collection
}

// Selection is what selecting a document node hands to the navigation state.
type Selection struct {
	Document DocumentRef
	Parent   CollectionRef
}

// CollectionRef returns the reference of a collection node.
func (n Node) CollectionRef() CollectionRef {
	return CollectionRef{Name: n.Name, Path: n.Path}
}

// Selection returns the document and its owning collection.
func (n Node) Selection() Selection {
	s := Selection{Document: DocumentRef{ID: n.Name, Path: n.Path}}
	if n.Parent != nil {
		s.Parent = n.Parent.Ref()
	}
	return s
}

func collectionNode(c *Collection, depth int) Node {
	return Node{Kind: KindCollection, Name: c.Name, Path: c.Path, Depth: depth, Collection: c}
}

func documentNode(d *Document, parent *Collection, depth int) Node {
	return Node{Kind: KindDocument, Name: d.ID, Path: d.Path, Depth: depth, Document: d, Parent: parent}
}

// Walk yields every node of the tree in display order: each collection, then
// for each of its documents the document followed by its sub-collections.
// Names are visited in sorted order. The sequence reads the tree when it is
// ranged over, so it reflects later mutations and can be ranged again.
func (t *Tree) Walk() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, name := range slices.Sorted(maps.Keys(t.Collections)) {
			if !t.Collections[name].walk(0, yield) {
				return
			}
		}
	}
}

// Walk yields c and its descendants starting at depth.
func (c *Collection) Walk(depth int) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		c.walk(depth, yield)
	}
}

func (c *Collection) walk(depth int, yield func(Node) bool) bool {
	if !yield(collectionNode(c, depth)) {
		return false
	}
	for _, id := range slices.Sorted(maps.Keys(c.Documents)) {
		d := c.Documents[id]
		if !yield(documentNode(d, c, depth+1)) {
			return false
		}
		for _, name := range slices.Sorted(maps.Keys(d.Collections)) {
			if !d.Collections[name].walk(depth+2, yield) {
				return false
			}
		}
	}
	return true
}
