package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/faciam-dev/docmeta/internal/views"
	"github.com/faciam-dev/docmeta/pkg/doctree"
)

func (m Model) View() string {
	w, h := m.width, m.height
	if w == 0 || h == 0 {
		w, h = 100, 30
	}
	leftW := w / 3
	rightW := w - leftW - 4
	paneH := max(h-6, 3)

	path := m.sel.Path()
	if m.sel.Database() == "" {
		path = "databases"
	}
	header := m.st.Title.Render("docmeta") + "  " + m.st.Path.Render(path)

	left := m.st.Pane.Width(leftW).Height(paneH).Render(m.renderRows(paneH))
	right := m.st.Pane.Width(rightW).Height(paneH).Render(m.renderDetail())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	var footer string
	switch {
	case m.prompt != promptNone:
		footer = m.input.View()
	case m.filtering || m.filter.Value() != "":
		footer = m.filter.View()
	case strings.HasPrefix(m.status, "Error") || strings.HasPrefix(m.status, "Creation failed"):
		footer = m.st.Error.Render(m.status)
	default:
		footer = m.st.Success.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, m.help.View(m.keys))
}

func (m Model) renderRows(height int) string {
	if len(m.rows) == 0 {
		if m.sel.Database() == "" && m.dbs.State().Loading {
			return m.st.Muted.Render("Loading databases...")
		}
		return m.st.Muted.Render("(empty)")
	}
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	var b strings.Builder
	for i := start; i < len(m.rows) && i < start+height; i++ {
		r := m.rows[i]
		var line string
		switch {
		case r.db != "":
			line = m.st.Collection.Render(r.db)
		case r.node.Kind == doctree.KindCollection:
			line = strings.Repeat("  ", r.node.Depth) + m.st.Collection.Render("▸ "+r.node.Name)
		default:
			line = strings.Repeat("  ", r.node.Depth) + m.st.Document.Render("• "+r.node.Name)
		}
		if i == m.cursor {
			line = m.st.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderDetail() string {
	switch {
	case m.meta != nil:
		return m.renderMetadata()
	case m.doc != nil:
		return m.renderDocument(m.doc.State())
	case m.coll != nil:
		return m.renderCollection(m.coll.State(), m.coll.IDHint())
	case m.sel.Database() == "":
		return m.st.Muted.Render("Select a database, or press n to create one.")
	}
	return m.st.Muted.Render("Select a collection or document.")
}

func (m Model) renderCollection(s views.CollectionState, idHint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.st.Title.Render("Collection "+s.Name))
	fmt.Fprintf(&b, "%s %s\n\n", m.st.Muted.Render("schema key"), s.Key)
	switch {
	case s.DocsLoading:
		b.WriteString(m.st.Muted.Render("Loading documents...") + "\n")
	case s.DocsErr != "":
		b.WriteString(m.st.Error.Render(s.DocsErr) + "\n")
	default:
		fmt.Fprintf(&b, "%d documents\n", len(s.Documents))
	}
	b.WriteByte('\n')
	switch {
	case s.MetaLoading:
		b.WriteString(m.st.Muted.Render("Loading schema..."))
	case s.MetaErr != "":
		b.WriteString(m.st.Error.Render(s.MetaErr))
	case s.Metadata == nil:
		b.WriteString(m.st.Muted.Render("No schema: documents take an id only."))
	default:
		b.WriteString("New document fields:\n")
		for _, f := range s.FormFields() {
			req := ""
			if f.Required {
				req = m.st.Error.Render(" *")
			}
			fmt.Fprintf(&b, "  %s (%s)%s\n", f.DisplayName(), f.DataType, req)
		}
	}
	fmt.Fprintf(&b, "\n%s", m.st.Muted.Render("n: new document, e.g. "+idHint))
	return b.String()
}

func (m Model) renderDocument(s views.DocumentState) string {
	if s.Loading {
		return m.st.Muted.Render("Loading " + s.ID + "...")
	}
	if s.Err != "" {
		return m.st.Error.Render(s.Err)
	}
	var b strings.Builder
	b.WriteString(m.st.Title.Render("Document "+s.ID) + "\n\n")
	data := make(map[string]any, len(s.Data))
	for _, k := range s.Keys() {
		data[k] = s.Data[k]
	}
	src, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		src = []byte(views.FormatValue(data))
	}
	b.WriteString(m.hl.Highlight(string(src), m.st))
	b.WriteString("\n\n")
	if len(s.SubCollections) == 0 {
		b.WriteString(m.st.Muted.Render("No sub-collections."))
	} else {
		b.WriteString("Sub-collections: " + m.st.Collection.Render(strings.Join(s.SubCollections, ", ")))
	}
	return b.String()
}

func (m Model) renderMetadata() string {
	ed := m.meta.Editor
	var b strings.Builder
	b.WriteString(m.st.Title.Render("Schema "+m.meta.Key()) + "\n")
	b.WriteString(m.st.Muted.Render(m.meta.Route()) + "\n\n")
	if ed.Len() == 0 {
		b.WriteString(m.st.Muted.Render("No fields defined."))
		return b.String()
	}
	tbl := ed.Table()
	for _, k := range ed.Keys() {
		f, _ := ed.Field(k)
		flags := ""
		if k == tbl.PrimaryKey {
			flags += " pk"
		}
		if f.Required {
			flags += " required"
		}
		if f.StorageType != "" {
			flags += " " + string(f.StorageType)
		}
		fmt.Fprintf(&b, "%s %s%s\n", m.st.Key.Render(k), f.DataType, m.st.Muted.Render(flags))
	}
	if n := ed.ForeignKeys().Len(); n > 0 {
		fmt.Fprintf(&b, "\n%d foreign keys\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}
