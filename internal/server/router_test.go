package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/faciam-dev/docmeta/internal/store/memstore"
	"github.com/faciam-dev/docmeta/pkg/doctree"
)

func TestRouter(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://ui.local, http://other.local")
	s := memstore.New()
	s.Load("app", doctree.Demo())
	api, err := New(Config{Store: s})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(api.Adapter())
	defer srv.Close()

	for _, tc := range []struct {
		path   string
		status int
		body   string
	}{
		{"/databases", http.StatusOK, `["app"]`},
		{"/databases/app/collections", http.StatusOK, `"users.user123.posts"`},
		{"/documents/app/users/user123/posts/postA", http.StatusOK, `"subcollections":["comments"]`},
		{"/metadata/app/users", http.StatusNotFound, `"status":404`},
		{"/metrics", http.StatusOK, "docmeta_api_requests_total"},
		{"/healthz", http.StatusOK, "ok"},
		{"/openapi.json", http.StatusOK, "createCollection"},
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+tc.path, nil)
		req.Header.Set("Origin", "http://other.local")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tc.status || !strings.Contains(string(b), tc.body) {
			t.Errorf("GET %s = %d %s", tc.path, resp.StatusCode, b)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://other.local" {
			t.Errorf("GET %s: allow-origin %q", tc.path, got)
		}
	}
}
