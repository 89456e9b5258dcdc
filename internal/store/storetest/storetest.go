// Package storetest runs the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// Run exercises s. The store must start without a database named "shop".
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("databases", func(t *testing.T) {
		created, err := s.CreateDatabase(ctx, "shop")
		if err != nil || !created {
			t.Fatalf("created=%v err=%v", created, err)
		}
		created, err = s.CreateDatabase(ctx, "shop")
		if err != nil || created {
			t.Fatalf("second create: created=%v err=%v", created, err)
		}
		dbs, err := s.ListDatabases(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !contains(dbs, "shop") {
			t.Fatalf("databases %v", dbs)
		}
		if _, err := s.ListCollections(ctx, "no_such_db"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("list collections of missing db: %v", err)
		}
	})

	t.Run("collections", func(t *testing.T) {
		if err := s.CreateCollection(ctx, "shop", "users"); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateCollection(ctx, "shop", "users"); !errors.Is(err, store.ErrExists) {
			t.Fatalf("duplicate: %v", err)
		}
		if err := s.UpsertDocument(ctx, "shop", "users", "u1", map[string]any{"name": "Ann"}); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateCollection(ctx, "shop", "users.u1.orders"); err != nil {
			t.Fatal(err)
		}
		names, err := s.ListCollections(ctx, "shop")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"users", "users.u1.orders"}, names); diff != "" {
			t.Fatalf("collections (-want +got):\n%s", diff)
		}
		if got := store.SubCollections(names, "users/u1"); !cmp.Equal(got, []string{"orders"}) {
			t.Fatalf("subcollections %v", got)
		}
	})

	t.Run("documents", func(t *testing.T) {
		doc := map[string]any{"title": "Hello", "n": float64(2), "tags": []any{"a", "b"}, "meta": map[string]any{"x": true}}
		if err := s.UpsertDocument(ctx, "shop", "users.u1.orders", "o1", doc); err != nil {
			t.Fatal(err)
		}
		if err := s.UpsertDocument(ctx, "shop", "users.u1.orders", "o0", map[string]any{}); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetDocument(ctx, "shop", "users.u1.orders", "o1")
		if err != nil {
			t.Fatal(err)
		}
		want := store.WithID(doc, "o1")
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("document (-want +got):\n%s", diff)
		}
		docs, err := s.ListDocuments(ctx, "shop", "users.u1.orders")
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 || docs[0][store.IDField] != "o0" || docs[1][store.IDField] != "o1" {
			t.Fatalf("documents %v", docs)
		}
		if err := s.UpsertDocument(ctx, "shop", "users.u1.orders", "o1", map[string]any{"title": "Bye"}); err != nil {
			t.Fatal(err)
		}
		got, _ = s.GetDocument(ctx, "shop", "users.u1.orders", "o1")
		if diff := cmp.Diff(map[string]any{"_id": "o1", "title": "Bye"}, got); diff != "" {
			t.Fatalf("upsert did not replace (-want +got):\n%s", diff)
		}
		if _, err := s.GetDocument(ctx, "shop", "users", "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("missing document: %v", err)
		}
		if _, err := s.ListDocuments(ctx, "shop", "nothing_here"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("missing collection: %v", err)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		key := "users$:_doc_id$orders"
		if _, err := s.GetMetadata(ctx, "shop", key); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("undefined metadata: %v", err)
		}
		title := schema.NewField("title")
		title.Required = true
		maxLen := 40
		title.MaxLength = &maxLen
		def := schema.Definition{
			Table:  schema.TableSettings{PrimaryKey: "title", Indexes: []string{"title"}, ForeignKeys: []schema.ForeignKey{}},
			Fields: schema.NewFields(title, schema.NewField("body"), schema.NewField("author")),
		}
		if err := s.SaveMetadata(ctx, "shop", key, def); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetMetadata(ctx, "shop", key)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"title", "body", "author"}, got.Fields.Keys()); diff != "" {
			t.Fatalf("field order (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(def.Table, got.Table); diff != "" {
			t.Fatalf("table (-want +got):\n%s", diff)
		}
		f, _ := got.Fields.Get("title")
		if !f.Required || f.MaxLength == nil || *f.MaxLength != 40 {
			t.Fatalf("field %+v", f)
		}

		def.Fields.Delete("author")
		if err := s.SaveMetadata(ctx, "shop", key, def); err != nil {
			t.Fatal(err)
		}
		all, err := s.ListMetadata(ctx, "shop")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 || all[key].Fields.Len() != 2 {
			t.Fatalf("list metadata %v", all)
		}
		names, _ := s.ListCollections(ctx, "shop")
		if contains(names, store.MetadataCollection) {
			t.Fatal("metadata collection listed")
		}
	})
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
