package doctree

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := New()
	for name, c := range t.Collections {
		out.Collections[name] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of c.
func (c *Collection) Clone() *Collection {
	out := &Collection{Name: c.Name, Path: c.Path, Documents: make(map[string]*Document, len(c.Documents))}
	for id, d := range c.Documents {
		out.Documents[id] = d.Clone()
	}
	return out
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := &Document{
		ID:          d.ID,
		Path:        d.Path,
		Fields:      make(map[string]any, len(d.Fields)),
		Collections: make(map[string]*Collection, len(d.Collections)),
	}
	for k, v := range d.Fields {
		out.Fields[k] = cloneValue(v)
	}
	for name, c := range d.Collections {
		out.Collections[name] = c.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
