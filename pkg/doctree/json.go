package doctree

import (
	"encoding/json"
	"fmt"

	"github.com/faciam-dev/docmeta/pkg/docpath"
)

// The JSON form nests collections as {"path", "documents"} and documents as
// their fields plus a reserved "collections" key. Names and ids come from the
// enclosing map keys and paths are rebuilt from them on decode.

type collectionJSON struct {
	Path      string               `json:"path"`
	Documents map[string]*Document `json:"documents"`
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	cols := t.Collections
	if cols == nil {
		cols = map[string]*Collection{}
	}
	return json.Marshal(cols)
}

func (t *Tree) UnmarshalJSON(b []byte) error {
	var cols map[string]*Collection
	if err := json.Unmarshal(b, &cols); err != nil {
		return fmt.Errorf("decode tree: %w", err)
	}
	if cols == nil {
		cols = map[string]*Collection{}
	}
	for name, c := range cols {
		if c == nil {
			c = &Collection{}
			cols[name] = c
		}
		c.relink(name, "")
	}
	t.Collections = cols
	return nil
}

func (c *Collection) MarshalJSON() ([]byte, error) {
	docs := c.Documents
	if docs == nil {
		docs = map[string]*Document{}
	}
	return json.Marshal(collectionJSON{Path: c.Path, Documents: docs})
}

func (c *Collection) UnmarshalJSON(b []byte) error {
	var raw collectionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode collection: %w", err)
	}
	c.Path = docpath.Join(raw.Path)
	c.Documents = raw.Documents
	c.relink(docpath.Name(c.Path), docpath.Parent(c.Path))
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v
	}
	cols := d.Collections
	if cols == nil {
		cols = map[string]*Collection{}
	}
	out[CollectionsKey] = cols
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	d.Fields = make(map[string]any, len(raw))
	d.Collections = map[string]*Collection{}
	for k, v := range raw {
		if k == CollectionsKey {
			if err := json.Unmarshal(v, &d.Collections); err != nil {
				return fmt.Errorf("decode %s: %w", CollectionsKey, err)
			}
			if d.Collections == nil {
				d.Collections = map[string]*Collection{}
			}
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decode field %q: %w", k, err)
		}
		d.Fields[k] = val
	}
	return nil
}

func (c *Collection) relink(name, parent string) {
	c.Name = name
	c.Path = docpath.Join(parent, name)
	if c.Documents == nil {
		c.Documents = map[string]*Document{}
	}
	for id, d := range c.Documents {
		if d == nil {
			d = &Document{}
			c.Documents[id] = d
		}
		d.ID = id
		d.Path = docpath.Join(c.Path, id)
		if d.Fields == nil {
			d.Fields = map[string]any{}
		}
		if d.Collections == nil {
			d.Collections = map[string]*Collection{}
		}
		for sub, sc := range d.Collections {
			if sc == nil {
				sc = &Collection{}
				d.Collections[sub] = sc
			}
			sc.relink(sub, d.Path)
		}
	}
}
