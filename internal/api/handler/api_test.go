package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docmeta/internal/audit"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/internal/store/memstore"
	"github.com/faciam-dev/docmeta/pkg/crypto"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	ps "github.com/faciam-dev/docmeta/pkg/schema"
)

func demoStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	s.Load("app", doctree.Demo())
	return s
}

func newServer(t *testing.T, s store.Store) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	api := humachi.New(r, huma.DefaultConfig("docmeta test", "1.0.0"))
	RegisterDatabase(api, &DatabaseHandler{Store: s})
	rec := &audit.Recorder{}
	RegisterMetadata(api, &MetadataHandler{Store: s, Audit: rec})
	RegisterAudit(api, &AuditHandler{Audit: rec})
	(&DocumentHandler{Store: s}).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(buf.Bytes(), &out)
	return resp.StatusCode, out
}

func TestDatabaseHandler(t *testing.T) {
	h := &DatabaseHandler{Store: demoStore(t)}
	ctx := context.Background()

	out, err := h.create(ctx, &dbParam{DB: "shop"})
	if err != nil || !out.Body.Created {
		t.Fatalf("create: %+v %v", out, err)
	}
	out, err = h.create(ctx, &dbParam{DB: "shop"})
	if err != nil || out.Body.Created {
		t.Fatalf("second create should be a no-op: %+v %v", out, err)
	}
	list, err := h.list(ctx, &struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"app", "shop"}, list.Body); diff != "" {
		t.Fatalf("databases (-want +got):\n%s", diff)
	}

	if _, err := h.createCollection(ctx, &collectionParam{DB: "app", Name: "users.user123.likes"}); err != nil {
		t.Fatal(err)
	}
	_, err = h.createCollection(ctx, &collectionParam{DB: "app", Name: "users"})
	var se huma.StatusError
	if !errors.As(err, &se) || se.GetStatus() != http.StatusConflict {
		t.Fatalf("duplicate collection: %v", err)
	}
	_, err = h.createCollection(ctx, &collectionParam{DB: "app", Name: "users.user123"})
	if !errors.As(err, &se) || se.GetStatus() != http.StatusUnprocessableEntity {
		t.Fatalf("document name accepted: %v", err)
	}
	names, err := h.listCollections(ctx, &dbParam{DB: "app"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"users", "users.user123.likes", "users.user123.posts", "users.user123.posts.postA.comments"}
	if diff := cmp.Diff(want, names.Body); diff != "" {
		t.Fatalf("collections (-want +got):\n%s", diff)
	}
	_, err = h.listCollections(ctx, &dbParam{DB: "nope"})
	if !errors.As(err, &se) || se.GetStatus() != http.StatusNotFound {
		t.Fatalf("unknown db: %v", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	srv := newServer(t, demoStore(t))
	key := "users$:_doc_id$posts"

	status, body := do(t, http.MethodGet, srv.URL+"/metadata/app/"+key, "")
	if status != http.StatusNotFound {
		t.Fatalf("undefined key: %d %v", status, body)
	}

	payload := `{"users$:_doc_id$posts":{"table":{"primary_key":"title"},"fields":{"title":{"column_name":"title","data_type":"string","required":true},"body":{"column_name":"body","data_type":"text"}}}}`
	status, body = do(t, http.MethodPost, srv.URL+"/metadata/app/"+key, payload)
	if status != http.StatusOK || body["action"] != "create" {
		t.Fatalf("save: %d %v", status, body)
	}

	resp, err := http.Get(srv.URL + "/metadata/app/" + key)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got struct {
		Data ps.Envelope `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	def, ok := got.Data[key]
	if !ok {
		t.Fatalf("data = %v", got.Data)
	}
	if diff := cmp.Diff([]string{"title", "body"}, def.Fields.Keys()); diff != "" {
		t.Fatalf("field order (-want +got):\n%s", diff)
	}

	status, body = do(t, http.MethodPost, srv.URL+"/metadata/app/"+key, `{"fields":{"title":{"column_name":"title","data_type":"string"}}}`)
	if status != http.StatusOK || body["action"] != "update" || body["removed"].(float64) == 0 {
		t.Fatalf("bare overwrite: %d %v", status, body)
	}

	status, _ = do(t, http.MethodPost, srv.URL+"/metadata/app/"+key, `{"table":{"primary_key":"nope"},"fields":{}}`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("bad primary key accepted: %d", status)
	}

	status, body = do(t, http.MethodGet, srv.URL+"/metadata/app", "")
	if data, _ := body["data"].(map[string]any); status != http.StatusOK || len(data) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}
}

func TestDocuments(t *testing.T) {
	srv := newServer(t, demoStore(t))

	status, body := do(t, http.MethodGet, srv.URL+"/documents/app/users", "")
	docs, _ := body["data"].([]any)
	if status != http.StatusOK || len(docs) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}

	status, body = do(t, http.MethodGet, srv.URL+"/documents/app/users/user123", "")
	if status != http.StatusOK {
		t.Fatalf("get: %d %v", status, body)
	}
	if diff := cmp.Diff([]any{"posts"}, body["subcollections"]); diff != "" {
		t.Fatalf("subcollections (-want +got):\n%s", diff)
	}
	if data := body["data"].(map[string]any); data["_id"] != "user123" {
		t.Fatalf("data = %v", data)
	}

	status, _ = do(t, http.MethodGet, srv.URL+"/documents/app/users/ghost", "")
	if status != http.StatusNotFound {
		t.Fatalf("missing document: %d", status)
	}

	status, _ = do(t, http.MethodPost, srv.URL+"/documents/app/users/user123/posts/postB", `{"title":"Hi"}`)
	if status != http.StatusOK {
		t.Fatalf("upsert: %d", status)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/documents/app/users/user123/posts", "")
	if docs := body["data"].([]any); len(docs) != 2 {
		t.Fatalf("posts = %v", docs)
	}

	status, _ = do(t, http.MethodPost, srv.URL+"/documents/app/users", `{"title":"Hi"}`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("upsert on collection path: %d", status)
	}
	status, _ = do(t, http.MethodPost, srv.URL+"/documents/app/users/u2", `[1,2]`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("non-object body: %d", status)
	}
}

func TestUpsertValidatesAndProtects(t *testing.T) {
	t.Setenv(crypto.EnvKey, "0123456789abcdef")
	s := demoStore(t)
	name := ps.NewField("name")
	name.Required = true
	name.Label = "Full name"
	card := ps.NewField("card")
	card.StorageType = ps.StorageAES256
	card.Mask = true
	if err := s.SaveMetadata(context.Background(), "app", "users", ps.Definition{Fields: ps.NewFields(name, card)}); err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, s)

	status, body := do(t, http.MethodPost, srv.URL+"/documents/app/users/u2", `{"card":"4111111111111111"}`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("missing required field: %d %v", status, body)
	}
	errs, _ := body["errors"].([]any)
	if len(errs) != 1 || !strings.Contains(errs[0].(map[string]any)["message"].(string), "Full name") {
		t.Fatalf("errors = %v", body["errors"])
	}

	status, body = do(t, http.MethodPost, srv.URL+"/documents/app/users/u2", `{"name":"Ada","card":"4111111111111111"}`)
	if status != http.StatusOK {
		t.Fatalf("upsert: %d %v", status, body)
	}
	raw, err := s.GetDocument(context.Background(), "app", "users", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if c := raw["card"].(string); !strings.HasPrefix(c, "enc:") {
		t.Fatalf("stored card = %q", c)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/documents/app/users/u2", "")
	if got := body["data"].(map[string]any)["card"]; got != "************1111" {
		t.Fatalf("card shown as %v", got)
	}
}

func TestAuditHistory(t *testing.T) {
	srv := newServer(t, demoStore(t))
	for i, body := range []string{
		`{"fields":{"a":{"column_name":"a","data_type":"string"}}}`,
		`{"fields":{"a":{"column_name":"a","data_type":"string"},"b":{"column_name":"b","data_type":"int"}}}`,
		`{"fields":{"b":{"column_name":"b","data_type":"int"}}}`,
	} {
		if status, out := do(t, http.MethodPost, srv.URL+"/metadata/app/users", body); status != http.StatusOK {
			t.Fatalf("save %d: %d %v", i, status, out)
		}
	}
	do(t, http.MethodPost, srv.URL+"/metadata/app/orders", `{"fields":{}}`)

	status, page := do(t, http.MethodGet, srv.URL+"/audit/app?key=users&limit=2", "")
	items, _ := page["items"].([]any)
	if status != http.StatusOK || len(items) != 2 || page["nextCursor"] == nil {
		t.Fatalf("first page: %d %v", status, page)
	}
	newest := items[0].(map[string]any)
	if newest["action"] != "update" || !strings.HasPrefix(newest["summary"].(string), "+0 -") || newest["diff"] != nil {
		t.Fatalf("newest = %v", newest)
	}

	_, page = do(t, http.MethodGet, srv.URL+"/audit/app?key=users&limit=2&cursor="+url.QueryEscape(page["nextCursor"].(string)), "")
	items, _ = page["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["action"] != "create" || page["nextCursor"] != nil {
		t.Fatalf("second page: %v", page)
	}

	id := int(newest["id"].(float64))
	status, entry := do(t, http.MethodGet, fmt.Sprintf("%s/audit/app/%d", srv.URL, id), "")
	if status != http.StatusOK || !strings.Contains(entry["diff"].(string), `"a"`) {
		t.Fatalf("entry: %d %v", status, entry)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/audit/app/999", ""); status != http.StatusNotFound {
		t.Fatalf("missing entry: %d", status)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/audit/app?cursor=bad", ""); status != http.StatusBadRequest {
		t.Fatalf("bad cursor: %d", status)
	}
}
