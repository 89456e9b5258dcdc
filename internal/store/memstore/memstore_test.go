package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/internal/store/storetest"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

func TestContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestCollectionsAreDotted(t *testing.T) {
	s := New()
	s.Load("demo", doctree.Demo())
	ctx := context.Background()

	names, err := s.ListCollections(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"users", "users.user123.posts", "users.user123.posts.postA.comments"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("collections (-want +got):\n%s", diff)
	}
	if got := store.SubCollections(names, "users/user123"); !cmp.Equal(got, []string{"posts"}) {
		t.Fatalf("subcollections %v", got)
	}

	if err := s.CreateCollection(ctx, "demo", "users"); !errors.Is(err, store.ErrExists) {
		t.Fatalf("err = %v", err)
	}
	if err := s.CreateCollection(ctx, "demo", "users.user123.likes"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCollection(ctx, "demo", "users.user123"); err == nil {
		t.Fatal("document path accepted as collection")
	}
}

func TestDocuments(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.ListDocuments(ctx, "app", "users"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	data := map[string]any{"name": "Ann", "_id": "ignored", "tags": []any{"a"}}
	if err := s.UpsertDocument(ctx, "app", "users", "u1", data); err != nil {
		t.Fatal(err)
	}
	data["tags"].([]any)[0] = "mutated"

	got, err := s.GetDocument(ctx, "app", "users", "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"_id": "u1", "name": "Ann", "tags": []any{"a"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document (-want +got):\n%s", diff)
	}

	if err := s.UpsertDocument(ctx, "app", "users", "u1", map[string]any{"name": "Bob"}); err != nil {
		t.Fatal(err)
	}
	docs, err := s.ListDocuments(ctx, "app", "users")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]map[string]any{{"_id": "u1", "name": "Bob"}}, docs); diff != "" {
		t.Fatalf("documents (-want +got):\n%s", diff)
	}
	if _, err := s.GetDocument(ctx, "app", "users", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDatabasesAndMetadata(t *testing.T) {
	s := New()
	ctx := context.Background()
	created, err := s.CreateDatabase(ctx, "app")
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	if created, _ := s.CreateDatabase(ctx, "app"); created {
		t.Fatal("second create reported created")
	}
	if _, err := s.GetMetadata(ctx, "app", "users"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	def := schema.Definition{Fields: schema.NewFields(schema.NewField("name"))}
	if err := s.SaveMetadata(ctx, "app", "users", def); err != nil {
		t.Fatal(err)
	}
	def.Fields.Delete("name")
	got, err := s.GetMetadata(ctx, "app", "users")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"name"}, got.Fields.Keys()); diff != "" {
		t.Fatalf("stored definition aliased caller (-want +got):\n%s", diff)
	}
	all, _ := s.ListMetadata(ctx, "app")
	if len(all) != 1 {
		t.Fatalf("list %v", all)
	}
}
