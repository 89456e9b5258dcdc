package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/faciam-dev/docmeta/internal/snapshot"
	ps "github.com/faciam-dev/docmeta/pkg/schema"
)

func TestSnapshotEndpoint(t *testing.T) {
	s := demoStore(t)
	title := ps.NewField("title")
	if err := s.SaveMetadata(t.Context(), "app", "users$:_doc_id$posts", ps.Definition{Fields: ps.NewFields(title)}); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	newAPI := func(dest snapshot.Dest) string {
		r := chi.NewRouter()
		api := humachi.New(r, huma.DefaultConfig("docmeta test", "1.0.0"))
		RegisterSnapshot(api, &SnapshotHandler{Store: s, Dest: dest})
		srv := httptest.NewServer(r)
		t.Cleanup(srv.Close)
		return srv.URL
	}

	url := newAPI(snapshot.LocalDir{Path: dir})
	code, body := do(t, http.MethodPost, url+"/snapshots/app", "")
	if code != http.StatusOK {
		t.Fatalf("status %d %v", code, body)
	}
	name, _ := body["file"].(string)
	if !strings.HasPrefix(name, "metadata_app_") || body["dest"] != "local" {
		t.Fatalf("body %v", body)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "title") {
		t.Fatalf("snapshot:\n%s", data)
	}

	if code, _ := do(t, http.MethodPost, url+"/snapshots/nope", ""); code != http.StatusNotFound {
		t.Fatalf("unknown db status %d", code)
	}
	if code, _ := do(t, http.MethodPost, newAPI(nil)+"/snapshots/app", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status %d", code)
	}
}
