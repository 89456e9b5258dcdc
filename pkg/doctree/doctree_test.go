package doctree

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type line struct {
	Kind  Kind
	Path  string
	Depth int
}

func lines(t *Tree) []line {
	var out []line
	for n := range t.Walk() {
		out = append(out, line{n.Kind, n.Path, n.Depth})
	}
	return out
}

func TestDemoWalk(t *testing.T) {
	want := []line{
		{KindCollection, "users", 0},
		{KindDocument, "users/user123", 1},
		{KindCollection, "users/user123/posts", 2},
		{KindDocument, "users/user123/posts/postA", 3},
		{KindCollection, "users/user123/posts/postA/comments", 4},
		{KindDocument, "users/user123/posts/postA/comments/c1", 5},
	}
	if diff := cmp.Diff(want, lines(Demo())); diff != "" {
		t.Fatalf("walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkIsRestartableAndLive(t *testing.T) {
	tree := Demo()
	seq := tree.Walk()
	first := 0
	for range seq {
		first++
	}
	users, _ := tree.Collection("users")
	if _, err := users.AddDocument("user000", nil); err != nil {
		t.Fatal(err)
	}
	second := 0
	for range seq {
		second++
	}
	if second != first+1 {
		t.Fatalf("second walk = %d nodes, want %d", second, first+1)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	n := 0
	for range Demo().Walk() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("n = %d", n)
	}
}

func TestWalkSortsSiblings(t *testing.T) {
	tree := New()
	for _, name := range []string{"zeta", "alpha"} {
		if _, err := tree.AddCollection(name); err != nil {
			t.Fatal(err)
		}
	}
	a, _ := tree.Collection("alpha")
	_, _ = a.AddDocument("b", nil)
	_, _ = a.AddDocument("a", nil)
	var got []string
	for n := range tree.Walk() {
		got = append(got, n.Path)
	}
	want := []string{"alpha", "alpha/a", "alpha/b", "zeta"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestDeepSelectionCarriesParent(t *testing.T) {
	for n := range Demo().Walk() {
		if n.Kind != KindDocument || n.Name != "c1" {
			continue
		}
		sel := n.Selection()
		want := Selection{
			Document: DocumentRef{ID: "c1", Path: "users/user123/posts/postA/comments/c1"},
			Parent:   CollectionRef{Name: "comments", Path: "users/user123/posts/postA/comments"},
		}
		if diff := cmp.Diff(want, sel); diff != "" {
			t.Fatalf("selection mismatch (-want +got):\n%s", diff)
		}
		return
	}
	t.Fatal("c1 not found")
}

func TestDemoIsFresh(t *testing.T) {
	a := Demo()
	users, _ := a.Collection("users")
	_ = users.Documents["user123"].SetField("name", "changed")
	b := Demo()
	if got := b.Collections["users"].Documents["user123"].Fields["name"]; got != "Vignesh" {
		t.Fatalf("demo shared state: %v", got)
	}
}

func TestFind(t *testing.T) {
	tree := Demo()
	n, ok := tree.Find("users/user123/posts/postA")
	if !ok || n.Kind != KindDocument || n.Parent.Name != "posts" || n.Depth != 3 {
		t.Fatalf("Find = %+v %v", n, ok)
	}
	if _, ok := tree.Find("users/nobody"); ok {
		t.Fatal("expected miss")
	}
	if _, ok := tree.Find(""); ok {
		t.Fatal("expected miss for empty path")
	}
	if _, ok := tree.Document("users"); ok {
		t.Fatal("collection returned as document")
	}
}

func TestMutationErrors(t *testing.T) {
	tree := Demo()
	if _, err := tree.AddCollection("users"); !errors.Is(err, ErrExists) {
		t.Fatalf("AddCollection dup = %v", err)
	}
	doc, _ := tree.Document("users/user123")
	if err := doc.SetField(CollectionsKey, 1); !errors.Is(err, ErrReservedField) {
		t.Fatalf("SetField reserved = %v", err)
	}
	if _, err := doc.AddCollection("posts"); !errors.Is(err, ErrExists) {
		t.Fatalf("AddCollection sub dup = %v", err)
	}
	if _, err := doc.AddCollection("a.b"); err == nil {
		t.Fatal("dotted name accepted")
	}
}

func TestEnsureCollection(t *testing.T) {
	tree := New()
	c, err := tree.EnsureCollection("orders/o1/items")
	if err != nil {
		t.Fatal(err)
	}
	if c.Path != "orders/o1/items" || c.Name != "items" {
		t.Fatalf("collection = %+v", c)
	}
	if err := tree.Validate(); err != nil {
		t.Fatal(err)
	}
	again, _ := tree.EnsureCollection("orders/o1/items")
	if again != c {
		t.Fatal("EnsureCollection created a duplicate")
	}
	if _, err := tree.EnsureCollection("orders/o1"); err == nil {
		t.Fatal("document path accepted")
	}
}

func TestFromRecords(t *testing.T) {
	c, err := FromRecords("users/u1/posts", []map[string]any{
		{"_id": "p2", "title": "b"},
		{"_id": 1, "title": "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Documents["1"].Path; got != "users/u1/posts/1" {
		t.Fatalf("path = %q", got)
	}
	if _, ok := c.Documents["p2"].Fields["_id"]; ok {
		t.Fatal("_id kept as field")
	}
	recs := c.Records()
	if recs[0]["_id"] != "1" || recs[1]["_id"] != "p2" {
		t.Fatalf("records = %v", recs)
	}
	if _, err := FromRecords("x", []map[string]any{{"a": 1}}); err == nil {
		t.Fatal("missing _id accepted")
	}
}

func TestMergeKeepsSubCollections(t *testing.T) {
	tr := Demo()
	users, _ := tr.Collection("users")
	err := users.Merge([]map[string]any{
		{"_id": "user123", "name": "Renamed"},
		{"_id": "u2", "collections": map[string]any{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.Collection("users/user123/posts"); !ok {
		t.Fatal("merge dropped sub-collection")
	}
	if diff := cmp.Diff(map[string]any{"name": "Renamed"}, users.Documents["user123"].Fields); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
	if len(users.Documents["u2"].Fields) != 0 {
		t.Fatalf("reserved key kept: %v", users.Documents["u2"].Fields)
	}
	if err := users.Merge([]map[string]any{{"name": "x"}}); err == nil {
		t.Fatal("missing _id accepted")
	}
}

func TestValidateDetectsBadPath(t *testing.T) {
	tree := Demo()
	tree.Collections["users"].Documents["user123"].Path = "wrong"
	if err := tree.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestJSONShape(t *testing.T) {
	b, err := json.Marshal(Demo())
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	users := raw["users"].(map[string]any)
	if users["path"] != "users" {
		t.Fatalf("path = %v", users["path"])
	}
	user := users["documents"].(map[string]any)["user123"].(map[string]any)
	if user["name"] != "Vignesh" {
		t.Fatalf("name = %v", user["name"])
	}
	if _, ok := user[CollectionsKey].(map[string]any)["posts"]; !ok {
		t.Fatal("posts missing from collections")
	}

	var back Tree
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if err := back.Validate(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(lines(Demo()), lines(&back)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Demo()
	doc, _ := a.Document("users/user123")
	_ = doc.SetField("tags", []any{"x"})
	b := a.Clone()
	doc.Fields["tags"].([]any)[0] = "y"
	bd, _ := b.Document("users/user123")
	if bd.Fields["tags"].([]any)[0] != "x" {
		t.Fatal("clone shares slices")
	}
}
