// Package tui is the terminal explorer: the collections and documents of a
// database as a tree on the left, the selected item on the right.
package tui

import (
	"context"
	"maps"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/internal/views"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	"github.com/faciam-dev/docmeta/pkg/selection"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptDatabase
	promptCollection
	promptDocument
	promptSubCollection
	promptField
)

var promptLabels = map[promptKind]string{
	promptDatabase:      "New database: ",
	promptCollection:    "New collection: ",
	promptDocument:      "New document (id {json}): ",
	promptSubCollection: "New sub-collection: ",
	promptField:         "Set field (key=value): ",
}

// row is one line of the left pane: a database name before a database is
// opened, a tree node after.
type row struct {
	db   string
	node doctree.Node
}

type Option func(*Model)

// WithLogger sets the logger handed to schema sessions.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// Model is the bubbletea model of the explorer.
type Model struct {
	ctx  context.Context
	api  views.API
	log  *zap.SugaredLogger
	keys keyMap
	st   styles
	hl   *highlighter
	help help.Model

	sel    selection.State
	dbs    *views.DatabaseList
	tree   *doctree.Tree
	rows   []row
	cursor int

	filter    textinput.Model
	filtering bool
	input     textinput.Model
	prompt    promptKind

	coll *views.CollectionView
	doc  *views.DocumentView
	meta *views.MetadataSession

	width, height int
	status        string
	showHelp      bool
}

// New returns an explorer. A non-empty route such as /database/app/users/u1
// opens that database with the addressed item selected.
func New(ctx context.Context, api views.API, route string, opts ...Option) (Model, error) {
	m := Model{
		ctx:    ctx,
		api:    api,
		log:    zap.NewNop().Sugar(),
		keys:   defaultKeyMap(),
		st:     defaultStyles(),
		hl:     newHighlighter(),
		help:   help.New(),
		dbs:    views.NewDatabaseList(api),
		filter: textinput.New(),
		input:  textinput.New(),
	}
	for _, o := range opts {
		o(&m)
	}
	m.filter.Prompt = "/ "
	m.filter.Placeholder = "filter paths"
	if route != "" {
		s, err := selection.FromRoute(route)
		if err != nil {
			return Model{}, err
		}
		m.sel = s
		m.tree = doctree.New()
		m.openPanel()
	}
	return m, nil
}

// Selection returns the navigation state.
func (m Model) Selection() selection.State { return m.sel }

func (m Model) Init() tea.Cmd {
	if m.sel.Database() == "" {
		return loadDatabases(m.ctx, m.dbs)
	}
	return tea.Batch(loadCollections(m.ctx, m.api, m.sel.Database()), m.panelCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case databasesMsg:
		if m.sel.Database() != "" {
			return m, nil
		}
		st := m.dbs.State()
		m.status = st.Status
		if st.Err != "" {
			m.status = "Error: " + st.Err
		}
		m.refresh()
		return m, nil

	case collectionsMsg:
		if msg.db != m.sel.Database() {
			return m, nil
		}
		m.status = msg.status
		if msg.err != nil {
			m.status = "Error: " + views.Message(msg.err)
			return m, nil
		}
		for _, name := range msg.names {
			if _, err := m.tree.EnsureCollection(docpath.PathFromStorageName(name)); err != nil {
				m.log.Warnw("skip collection", "name", name, "err", err)
			}
		}
		m.ensureTarget()
		m.refresh()
		m.focusTarget()
		return m, nil

	case collectionMsg:
		if msg.view != m.coll {
			return m, nil
		}
		m.mergeCollection(msg.view.State())
		return m, nil

	case documentMsg:
		if msg.view != m.doc {
			return m, nil
		}
		m.mergeDocument(msg.view.State())
		return m, nil

	case metadataMsg:
		if msg.err != nil {
			m.status = "Error: " + views.Message(msg.err)
			return m, nil
		}
		if msg.session.Key() != m.sel.MetadataKey() {
			return m, nil
		}
		m.meta = msg.session
		if !msg.session.Defined {
			m.status = "No schema defined for " + msg.session.Key()
		}
		return m, nil

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		return m.open()
	case key.Matches(msg, m.keys.Back):
		return m.back()
	case key.Matches(msg, m.keys.Filter):
		if m.sel.Database() != "" {
			m.filtering = true
			m.filter.Focus()
		}
	case key.Matches(msg, m.keys.New):
		switch {
		case m.sel.Database() == "":
			m.startPrompt(promptDatabase)
		case m.sel.Status() == selection.CollectionSelected:
			m.startPrompt(promptDocument)
		default:
			m.startPrompt(promptCollection)
		}
	case key.Matches(msg, m.keys.SubColl):
		if m.sel.Status() == selection.DocumentSelected {
			m.startPrompt(promptSubCollection)
		}
	case key.Matches(msg, m.keys.SetField):
		if m.sel.Status() == selection.DocumentSelected {
			m.startPrompt(promptField)
		}
	case key.Matches(msg, m.keys.Metadata):
		if t := m.sel.Target(); t != "" {
			return m, openMetadata(m.ctx, m, t)
		}
	case key.Matches(msg, m.keys.Reload):
		if m.sel.Database() == "" {
			return m, loadDatabases(m.ctx, m.dbs)
		}
		m.openPanel()
		return m, tea.Batch(loadCollections(m.ctx, m.api, m.sel.Database()), m.panelCmd())
	}
	return m, nil
}

// open acts on the row under the cursor.
func (m Model) open() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.rows) {
		return m, nil
	}
	r := m.rows[m.cursor]
	if r.db != "" {
		m.sel = selection.Reduce(m.sel, selection.OpenDatabase{Name: r.db})
		m.tree = doctree.New()
		m.rows, m.cursor, m.status = nil, 0, ""
		return m, loadCollections(m.ctx, m.api, r.db)
	}
	m.sel = selection.Reduce(m.sel, selection.FromNode(r.node))
	m.openPanel()
	return m, m.panelCmd()
}

// back clears the selection, then leaves the database.
func (m Model) back() (tea.Model, tea.Cmd) {
	if m.sel.Status() != selection.NoneSelected {
		m.sel = selection.Reduce(m.sel, selection.Clear{})
		m.coll, m.doc, m.meta = nil, nil, nil
		return m, nil
	}
	if m.sel.Database() == "" {
		return m, nil
	}
	m.sel = selection.State{}
	m.tree, m.coll, m.doc, m.meta = nil, nil, nil, nil
	m.rows, m.cursor = nil, 0
	m.filter.Reset()
	return m, loadDatabases(m.ctx, m.dbs)
}

// openPanel creates the view of the current selection, replacing any open
// one so results still in flight for it are dropped.
func (m *Model) openPanel() {
	m.coll, m.doc, m.meta = nil, nil, nil
	db := m.sel.Database()
	switch m.sel.Status() {
	case selection.CollectionSelected:
		c, _ := m.sel.Collection()
		m.coll = views.NewCollectionView(m.api, db, c.Path)
	case selection.DocumentSelected:
		d, _ := m.sel.Document()
		m.doc = views.NewDocumentView(m.api, db, d.Path)
	}
}

func (m Model) panelCmd() tea.Cmd {
	switch {
	case m.coll != nil:
		return loadCollection(m.ctx, m.coll)
	case m.doc != nil:
		return loadDocument(m.ctx, m.doc)
	}
	return nil
}

func (m *Model) startPrompt(k promptKind) {
	m.prompt = k
	m.input.Reset()
	m.input.Prompt = promptLabels[k]
	m.input.Focus()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		k, val := m.prompt, m.input.Value()
		m.prompt = promptNone
		m.input.Blur()
		return m.submit(k, val)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(k promptKind, val string) (tea.Model, tea.Cmd) {
	db := m.sel.Database()
	switch k {
	case promptDatabase:
		return m, createDatabase(m.ctx, m.dbs, val)
	case promptCollection:
		return m, createCollection(m.ctx, m.api, db, val)
	case promptDocument:
		if m.coll == nil {
			return m, nil
		}
		id, data, err := parseNewDocument(val)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		return m, addDocument(m.ctx, m.coll, id, data)
	case promptSubCollection:
		if m.doc == nil {
			return m, nil
		}
		return m, addSubCollection(m.ctx, m.doc, val)
	case promptField:
		if m.doc == nil {
			return m, nil
		}
		k, v, ok := strings.Cut(val, "=")
		if !ok || strings.TrimSpace(k) == "" {
			m.status = "Error: expected key=value"
			return m, nil
		}
		return m, setField(m.ctx, m.doc, k, v)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Reset()
		m.filter.Blur()
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}
	prev := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != prev {
		m.cursor = 0
		m.refresh()
	}
	return m, cmd
}

// ensureTarget adds the selected item's collection to the tree, so a route
// opened before the listing arrives still has a row to focus.
func (m *Model) ensureTarget() {
	c, ok := m.sel.Collection()
	if !ok {
		return
	}
	if _, err := m.tree.EnsureCollection(c.Path); err != nil {
		m.log.Warnw("selected collection", "path", c.Path, "err", err)
	}
}

func (m *Model) focusTarget() {
	t := m.sel.Target()
	for i, r := range m.rows {
		if r.node.Path == t && t != "" {
			m.cursor = i
			return
		}
	}
}

func (m *Model) mergeCollection(st views.CollectionState) {
	m.status = st.Status
	c, err := m.tree.EnsureCollection(st.Path)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	if err := c.Merge(st.Documents); err != nil {
		m.log.Warnw("merge documents", "path", st.Path, "err", err)
	}
	m.refresh()
}

func (m *Model) mergeDocument(st views.DocumentState) {
	m.status = st.Status
	if st.Err != "" {
		return
	}
	d, ok := m.tree.Document(st.Path)
	if !ok {
		c, err := m.tree.EnsureCollection(docpath.Parent(st.Path))
		if err != nil {
			m.status = "Error: " + err.Error()
			return
		}
		if d, err = c.AddDocument(st.ID, nil); err != nil {
			m.status = "Error: " + err.Error()
			return
		}
	}
	fields := maps.Clone(st.Data)
	delete(fields, "_id")
	delete(fields, doctree.CollectionsKey)
	d.Fields = fields
	for _, name := range st.SubCollections {
		if _, ok := d.Collections[name]; !ok {
			if _, err := d.AddCollection(name); err != nil {
				m.log.Warnw("skip sub-collection", "name", name, "err", err)
			}
		}
	}
	m.refresh()
	m.focusTarget()
}

// nodeSource adapts walked nodes to fuzzy matching on their paths.
type nodeSource []doctree.Node

func (s nodeSource) String(i int) string { return s[i].Path }
func (s nodeSource) Len() int            { return len(s) }

// refresh rebuilds the rows, keeping the cursor on the same item when it is
// still listed.
func (m *Model) refresh() {
	var keep string
	if m.cursor < len(m.rows) {
		keep = m.rows[m.cursor].db + m.rows[m.cursor].node.Path
	}
	m.rows = nil
	if m.sel.Database() == "" {
		for _, name := range m.dbs.State().Names {
			m.rows = append(m.rows, row{db: name})
		}
	} else if m.tree != nil {
		var nodes []doctree.Node
		for n := range m.tree.Walk() {
			nodes = append(nodes, n)
		}
		if q := m.filter.Value(); q != "" {
			matches := fuzzy.FindFrom(q, nodeSource(nodes))
			filtered := make([]doctree.Node, 0, len(matches))
			for _, mt := range matches {
				filtered = append(filtered, nodes[mt.Index])
			}
			nodes = filtered
		}
		for _, n := range nodes {
			m.rows = append(m.rows, row{node: n})
		}
	}
	for i, r := range m.rows {
		if r.db+r.node.Path == keep {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}
