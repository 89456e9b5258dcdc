package views

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/sdk/client"
)

const postsMeta = `{"data":{"users$:_doc_id$posts":{"table":{"primary_key":"title"},"fields":{` +
	`"_id":{"column_name":"_id","data_type":"string","required":false},` +
	`"title":{"column_name":"title","data_type":"string","required":true,"label":"Title"},` +
	`"body":{"column_name":"body","data_type":"text","required":false}}}}}`

type fakeAPI struct {
	requests atomic.Int64
	upserts  atomic.Int64
	srv      *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /databases", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"app"})
	})
	mux.HandleFunc("POST /databases/{db}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": r.PathValue("db"), "created": r.PathValue("db") != "app"})
	})
	mux.HandleFunc("GET /databases/app/collections", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"users", "users.u1.posts", "orders"})
	})
	mux.HandleFunc("POST /databases/app/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") == "users" {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"status":409,"detail":"collection users already exists"}`)
		}
	})
	mux.HandleFunc("GET /documents/app/users/u1/posts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"_id":"p1","title":"Hello"}]}`)
	})
	mux.HandleFunc("GET /documents/app/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"_id":"o1"}]}`)
	})
	mux.HandleFunc("GET /documents/app/users/u1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"_id":"u1","name":"Ann","tags":["a"],"collections":{}},"subcollections":["posts"]}`)
	})
	mux.HandleFunc("POST /documents/app/", func(w http.ResponseWriter, r *http.Request) {
		f.upserts.Add(1)
	})
	mux.HandleFunc("GET /metadata/app/{key}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("key") {
		case "users$:_doc_id$posts":
			_, _ = io.WriteString(w, postsMeta)
		case "orders":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"status":500,"detail":"metadata store offline"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status":404,"detail":"not found"}`)
		}
	})
	mux.HandleFunc("POST /metadata/app/{key}", func(w http.ResponseWriter, r *http.Request) {})
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client() *client.Client { return client.New(f.srv.URL) }

func TestCollectionListFiltersNested(t *testing.T) {
	api := newFakeAPI(t)
	v := NewCollectionList(api.client(), "app")
	v.Load(context.Background())
	s := v.State()
	if s.Loading || s.Err != "" {
		t.Fatalf("state %+v", s)
	}
	if diff := cmp.Diff([]string{"users", "orders"}, s.Names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if err := v.Create(context.Background(), "users"); err == nil {
		t.Fatal("expected conflict")
	}
	if got := v.State().Status; got != "Error: collection users already exists" {
		t.Fatalf("status %q", got)
	}
	if err := v.Create(context.Background(), "invoices"); err != nil {
		t.Fatal(err)
	}
}

func TestDatabaseList(t *testing.T) {
	api := newFakeAPI(t)
	v := NewDatabaseList(api.client())
	if err := v.Create(context.Background(), "shop"); err != nil {
		t.Fatal(err)
	}
	s := v.State()
	if s.Status != "Database 'shop' created successfully." || len(s.Names) != 1 {
		t.Fatalf("state %+v", s)
	}
}

func TestCollectionViewLoadsIndependently(t *testing.T) {
	api := newFakeAPI(t)
	v := NewCollectionView(api.client(), "app", "orders")
	v.Load(context.Background())
	s := v.State()
	if s.DocsErr != "" || len(s.Documents) != 1 {
		t.Fatalf("documents lost by metadata failure: %+v", s)
	}
	if s.MetaErr != "metadata store offline" || s.Metadata != nil {
		t.Fatalf("metadata state %+v", s)
	}
	if s.DocsLoading || s.MetaLoading {
		t.Fatal("loading flags not cleared")
	}
}

func TestCollectionViewFromDocumentPath(t *testing.T) {
	api := newFakeAPI(t)
	v := NewCollectionView(api.client(), "app", "users/u1/posts/p1")
	v.Load(context.Background())
	s := v.State()
	if s.Path != "users/u1/posts" || s.Key != "users$:_doc_id$posts" {
		t.Fatalf("path %q key %q", s.Path, s.Key)
	}
	if s.Metadata == nil {
		t.Fatal("metadata not loaded")
	}
	var keys []string
	for _, f := range s.FormFields() {
		keys = append(keys, f.Key)
	}
	if diff := cmp.Diff([]string{"title", "body"}, keys); diff != "" {
		t.Fatalf("form (-want +got):\n%s", diff)
	}
	if v.IDHint() != "post_123" {
		t.Fatalf("hint %q", v.IDHint())
	}
}

func TestAddDocumentMissingRequiredSendsNothing(t *testing.T) {
	api := newFakeAPI(t)
	v := NewCollectionView(api.client(), "app", "users/u1/posts")
	v.Load(context.Background())
	before := api.requests.Load()

	err := v.AddDocument(context.Background(), "p2", map[string]any{"body": "text only"})
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v", err)
	}
	if diff := cmp.Diff([]string{"Title"}, verr.Missing()); diff != "" {
		t.Fatalf("missing (-want +got):\n%s", diff)
	}
	if got := api.requests.Load(); got != before {
		t.Fatalf("%d requests issued", got-before)
	}

	if err := v.AddDocument(context.Background(), "p2", map[string]any{"title": "ok"}); err != nil {
		t.Fatal(err)
	}
	if api.upserts.Load() != 1 {
		t.Fatal("upsert not sent")
	}
	if got := v.State().Status; got != "Document 'p2' saved." {
		t.Fatalf("status %q", got)
	}
}

func TestAddDocumentWithoutSchema(t *testing.T) {
	api := newFakeAPI(t)
	v := NewCollectionView(api.client(), "app", "users")
	v.LoadMetadata(context.Background())
	if s := v.State(); s.Metadata != nil || s.MetaErr != "" {
		t.Fatalf("404 should mean no schema: %+v", s)
	}
	if err := v.AddDocument(context.Background(), "  ", nil); err == nil {
		t.Fatal("blank id accepted")
	}
	if err := v.AddDocument(context.Background(), "u9", nil); err != nil {
		t.Fatal(err)
	}
}

func TestDocumentView(t *testing.T) {
	api := newFakeAPI(t)
	v := NewDocumentView(api.client(), "app", "users/u1")
	v.Load(context.Background())
	s := v.State()
	if s.Err != "" {
		t.Fatal(s.Err)
	}
	if diff := cmp.Diff([]string{"name", "tags"}, s.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if got := FormatValue(s.Data["tags"]); got != "[\n  \"a\"\n]" {
		t.Fatalf("format %q", got)
	}
	if v.SubCollectionPath("posts") != "users/u1/posts" {
		t.Fatal("sub-collection path")
	}
	if err := v.SetField(context.Background(), "age", "42"); err != nil {
		t.Fatal(err)
	}
	if err := v.SetField(context.Background(), "collections", "1"); err == nil {
		t.Fatal("reserved field accepted")
	}
	if err := v.AddSubCollection(context.Background(), "likes"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"likes", "posts"}, v.State().SubCollections); diff != "" {
		t.Fatalf("subcollections (-want +got):\n%s", diff)
	}
}

func TestInvalidNamesReportStatus(t *testing.T) {
	api := newFakeAPI(t)
	ctx := context.Background()
	dbs := NewDatabaseList(api.client())
	colls := NewCollectionList(api.client(), "app")
	coll := NewCollectionView(api.client(), "app", "orders")
	doc := NewDocumentView(api.client(), "app", "users/u1")
	before := api.requests.Load()

	for _, tc := range []struct {
		name   string
		run    func() error
		status func() string
		reason string
	}{
		{"database", func() error { return dbs.Create(ctx, "bad.name") },
			func() string { return dbs.State().Status }, `"bad.name" contains "."`},
		{"collection", func() error { return colls.Create(ctx, "a/b") },
			func() string { return colls.State().Status }, `"a/b" contains "/"`},
		{"document", func() error { return coll.AddDocument(ctx, "a/b", map[string]any{"x": 1}) },
			func() string { return coll.State().Status }, `"a/b" contains "/"`},
		{"blank document", func() error { return coll.AddDocument(ctx, " ", nil) },
			func() string { return coll.State().Status }, "document id is required"},
		{"field", func() error { return doc.SetField(ctx, "_id", "1") },
			func() string { return doc.State().Status }, `invalid field name "_id"`},
		{"sub-collection", func() error { return doc.AddSubCollection(ctx, "x.y") },
			func() string { return doc.State().Status }, `"x.y" contains "."`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); err == nil {
				t.Fatal("invalid name accepted")
			}
			got := tc.status()
			if !strings.HasPrefix(got, "Error: ") || !strings.Contains(got, tc.reason) {
				t.Fatalf("status %q", got)
			}
		})
	}
	if got := api.requests.Load(); got != before {
		t.Fatalf("%d requests issued", got-before)
	}
}

func TestOpenMetadata(t *testing.T) {
	api := newFakeAPI(t)
	ctx := context.Background()

	s, err := OpenMetadata(ctx, api.client(), "app", "users/u1/posts", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Defined || s.Key() != "users$:_doc_id$posts" || s.Editor.Len() != 3 {
		t.Fatalf("session %+v", s)
	}
	if s.Route() != "/databases/metadata/app/users/u1/posts" {
		t.Fatalf("route %q", s.Route())
	}
	choices, err := s.TableChoices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"users", "orders"}, choices); diff != "" {
		t.Fatalf("choices (-want +got):\n%s", diff)
	}

	empty, err := OpenMetadata(ctx, api.client(), "app", "users", nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Defined || empty.Editor.Len() != 0 {
		t.Fatal("expected an empty editor")
	}
	empty.Editor.Add()
	if err := empty.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if !empty.Defined || empty.Status != "Metadata saved." {
		t.Fatalf("after save %+v", empty)
	}

	if _, err := OpenMetadata(ctx, api.client(), "app", "orders", nil); err == nil {
		t.Fatal("server error swallowed")
	}
}
