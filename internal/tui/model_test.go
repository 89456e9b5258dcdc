package tui

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docmeta/internal/server"
	"github.com/faciam-dev/docmeta/internal/store/memstore"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/pkg/selection"
	"github.com/faciam-dev/docmeta/sdk/client"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()
	s := memstore.New()
	s.Load("app", doctree.Demo())
	api, err := server.New(server.Config{Store: s})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(api.Adapter())
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func newModel(t *testing.T, route string) (Model, *client.Client) {
	t.Helper()
	c := newClient(t)
	m, err := New(context.Background(), c, route)
	if err != nil {
		t.Fatal(err)
	}
	return drain(t, m, m.Init()), c
}

// drain runs cmd and every command that follows from it.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if _, ok := msg.(tea.QuitMsg); ok {
			continue
		}
		next, nc := m.Update(msg)
		m = next.(Model)
		queue = append(queue, nc)
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends a key and returns the command it produced without running it.
func press(m Model, k string) (Model, tea.Cmd) {
	next, cmd := m.Update(keyMsg(k))
	return next.(Model), cmd
}

func paths(m Model) []string {
	var out []string
	for _, r := range m.rows {
		if r.db != "" {
			out = append(out, r.db)
			continue
		}
		out = append(out, r.node.Path)
	}
	return out
}

func TestOpenDatabaseBuildsTree(t *testing.T) {
	m, _ := newModel(t, "")
	if diff := cmp.Diff([]string{"app"}, paths(m)); diff != "" {
		t.Fatalf("databases (-want +got):\n%s", diff)
	}
	m, cmd := press(m, "enter")
	m = drain(t, m, cmd)
	want := []string{
		"users",
		"users/user123",
		"users/user123/posts",
		"users/user123/posts/postA",
		"users/user123/posts/postA/comments",
	}
	if diff := cmp.Diff(want, paths(m)); diff != "" {
		t.Fatalf("tree (-want +got):\n%s", diff)
	}
	if m.Selection().Database() != "app" || m.Selection().Status() != selection.NoneSelected {
		t.Fatalf("selection %+v", m.Selection())
	}

	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)
	if got := m.Selection().Path(); got != docpath.Route("app", "users") {
		t.Fatalf("path %q", got)
	}
	st := m.coll.State()
	if st.DocsLoading || len(st.Documents) != 1 || st.Metadata != nil {
		t.Fatalf("collection state %+v", st)
	}
	if !strings.Contains(m.View(), "No schema") {
		t.Fatal("missing no-schema hint")
	}
}

func TestRouteOpensDocument(t *testing.T) {
	m, _ := newModel(t, docpath.Route("app", "users/user123/posts/postA"))
	sel := m.Selection()
	d, ok := sel.Document()
	if !ok || d.ID != "postA" {
		t.Fatalf("selection %+v", sel)
	}
	if c, _ := sel.Collection(); c.Path != "users/user123/posts" || c.Name != "posts" {
		t.Fatalf("parent %+v", c)
	}
	if got := m.rows[m.cursor].node.Path; got != "users/user123/posts/postA" {
		t.Fatalf("cursor on %q", got)
	}
	st := m.doc.State()
	if st.Data["title"] != "My post" {
		t.Fatalf("data %v", st.Data)
	}
	if diff := cmp.Diff([]string{"comments"}, st.SubCollections); diff != "" {
		t.Fatalf("sub-collections (-want +got):\n%s", diff)
	}
	if v := m.View(); !strings.Contains(v, "My post") || !strings.Contains(v, "Sub-collections") {
		t.Fatalf("view:\n%s", v)
	}
}

func TestBadRoute(t *testing.T) {
	if _, err := New(context.Background(), newClient(t), "/nowhere"); err == nil {
		t.Fatal("expected error")
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	m, _ := newModel(t, docpath.Route("app", ""))
	m, slow := press(m, "enter")
	m, _ = press(m, "down")
	m, _ = press(m, "enter")
	if m.doc == nil || m.coll != nil {
		t.Fatal("document panel not opened")
	}
	next, _ := m.Update(slow())
	m = next.(Model)
	if m.coll != nil || m.Selection().Status() != selection.DocumentSelected {
		t.Fatal("stale collection result replaced the open panel")
	}
}

func TestFilter(t *testing.T) {
	m, _ := newModel(t, docpath.Route("app", ""))
	m, _ = press(m, "/")
	m, _ = press(m, "comm")
	if diff := cmp.Diff([]string{"users/user123/posts/postA/comments"}, paths(m)); diff != "" {
		t.Fatalf("filtered (-want +got):\n%s", diff)
	}
	m, _ = press(m, "esc")
	if len(m.rows) != 5 || m.filtering {
		t.Fatalf("filter not cleared: %v", paths(m))
	}
}

func TestNewDocumentChecksSchema(t *testing.T) {
	m, c := newModel(t, "")
	name := schema.NewField("name")
	name.Required = true
	if err := c.SaveMetadata(context.Background(), "app", "users", schema.Definition{Fields: schema.NewFields(name)}); err != nil {
		t.Fatal(err)
	}
	m, cmd := press(m, "enter")
	m = drain(t, m, cmd)
	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)

	m, _ = press(m, "n")
	if m.prompt != promptDocument {
		t.Fatalf("prompt %v", m.prompt)
	}
	m, _ = press(m, "u9 {}")
	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)
	if !strings.HasPrefix(m.status, "Error") {
		t.Fatalf("status %q", m.status)
	}

	m, _ = press(m, "n")
	m, _ = press(m, `u9 {"name":"Bo"}`)
	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)
	if m.status != "Document 'u9' saved." {
		t.Fatalf("status %q", m.status)
	}
	if _, ok := m.tree.Document("users/u9"); !ok {
		t.Fatalf("rows %v", paths(m))
	}
}

func TestInvalidNameShowsError(t *testing.T) {
	m, _ := newModel(t, "")
	m, _ = press(m, "n")
	if m.prompt != promptDatabase {
		t.Fatalf("prompt %v", m.prompt)
	}
	m, _ = press(m, "bad.name")
	m, cmd := press(m, "enter")
	m = drain(t, m, cmd)
	if !strings.HasPrefix(m.status, "Error") || !strings.Contains(m.status, `"bad.name"`) {
		t.Fatalf("status %q", m.status)
	}

	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)
	m, _ = press(m, "n")
	if m.prompt != promptCollection {
		t.Fatalf("prompt %v", m.prompt)
	}
	m, _ = press(m, "a/b")
	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)
	if !strings.HasPrefix(m.status, "Error") || !strings.Contains(m.status, `"a/b"`) {
		t.Fatalf("status %q", m.status)
	}
}

func TestSetFieldAndSubCollection(t *testing.T) {
	m, c := newModel(t, docpath.Route("app", "users/user123"))
	m, _ = press(m, "e")
	m, _ = press(m, "age=26")
	m, cmd := press(m, "enter")
	m = drain(t, m, cmd)
	if got := m.doc.State().Data["age"]; got != float64(26) {
		t.Fatalf("age = %v (%s)", got, m.status)
	}

	m, _ = press(m, "c")
	m, _ = press(m, "likes")
	m, cmd = press(m, "enter")
	m = drain(t, m, cmd)
	if _, ok := m.tree.Collection("users/user123/likes"); !ok {
		t.Fatalf("rows %v", paths(m))
	}
	names, err := c.ListCollections(context.Background(), "app")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.Join(names, ","), "users.user123.likes") {
		t.Fatalf("collections %v", names)
	}
}

func TestMetadataPanel(t *testing.T) {
	m, c := newModel(t, docpath.Route("app", "users/user123/posts"))
	title := schema.NewField("title")
	title.Required = true
	def := schema.Definition{Fields: schema.NewFields(title)}
	if err := c.SaveMetadata(context.Background(), "app", "users$:_doc_id$posts", def); err != nil {
		t.Fatal(err)
	}
	m, cmd := press(m, "m")
	m = drain(t, m, cmd)
	if m.meta == nil || m.meta.Key() != "users$:_doc_id$posts" {
		t.Fatalf("metadata session %+v", m.meta)
	}
	if v := m.View(); !strings.Contains(v, "required") {
		t.Fatalf("view:\n%s", v)
	}
}

func TestBackLeavesDatabase(t *testing.T) {
	m, _ := newModel(t, docpath.Route("app", "users"))
	m, _ = press(m, "esc")
	if m.Selection().Status() != selection.NoneSelected || m.Selection().Database() != "app" {
		t.Fatalf("selection %+v", m.Selection())
	}
	m, cmd := press(m, "esc")
	m = drain(t, m, cmd)
	if diff := cmp.Diff([]string{"app"}, paths(m)); diff != "" {
		t.Fatalf("databases (-want +got):\n%s", diff)
	}
}

func TestParseNewDocument(t *testing.T) {
	for _, tc := range []struct {
		in   string
		id   string
		data map[string]any
		err  bool
	}{
		{in: "u1", id: "u1", data: map[string]any{}},
		{in: ` u2 {"a":1} `, id: "u2", data: map[string]any{"a": float64(1)}},
		{in: "u3 [1]", err: true},
	} {
		id, data, err := parseNewDocument(tc.in)
		if (err != nil) != tc.err {
			t.Fatalf("%q: err %v", tc.in, err)
		}
		if tc.err {
			continue
		}
		if id != tc.id || !cmp.Equal(tc.data, data) {
			t.Fatalf("%q: got %q %v", tc.in, id, data)
		}
	}
}

func TestHighlightKeepsText(t *testing.T) {
	src := "{\n  \"name\": \"Ann\",\n  \"age\": 3\n}"
	out := newHighlighter().Highlight(src, defaultStyles())
	for _, s := range []string{"name", "Ann", "3"} {
		if !strings.Contains(out, s) {
			t.Fatalf("%q missing from %q", s, out)
		}
	}
	if strings.Count(out, "\n") != 3 {
		t.Fatalf("line layout changed: %q", out)
	}
}
