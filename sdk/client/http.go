package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// Client provides REST access to the document and metadata API.
type Client struct {
	base string
	http *resty.Client
	log  *zap.SugaredLogger
}

type Option func(*Client)

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc)
	}
}

// WithTimeout sets a per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithActor names the caller in the server's audit log.
func WithActor(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.http.SetHeader("X-Docmeta-Actor", name)
		}
	}
}

// New returns a Client for the API at base, e.g. http://localhost:8000.
func New(base string, opts ...Option) *Client {
	c := &Client{base: strings.TrimRight(base, "/"), http: resty.New(), log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(c)
	}
	c.http.SetHeader("Accept", "application/json")
	c.http.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.log.Debugw("api request", "method", resp.Request.Method, "url", resp.Request.URL,
			"status", resp.StatusCode(), "elapsed", resp.Time())
		return nil
	})
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) url(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.base)
	for _, p := range parts {
		for _, s := range docpath.Split(p) {
			b.WriteByte('/')
			b.WriteString(url.PathEscape(s))
		}
	}
	return b.String()
}

func (c *Client) get(ctx context.Context, out any, parts ...string) error {
	resp, err := c.http.R().SetContext(ctx).SetResult(out).Get(c.url(parts...))
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.url(parts...), err)
	}
	if resp.IsError() {
		return restyErr(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body, out any, parts ...string) error {
	req := c.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(c.url(parts...))
	if err != nil {
		return fmt.Errorf("POST %s: %w", c.url(parts...), err)
	}
	if resp.IsError() {
		return restyErr(resp)
	}
	return nil
}

// ListDatabases returns the database names.
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.get(ctx, &out, "databases"); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDatabase creates db if it does not exist and reports whether it was
// created.
func (c *Client) CreateDatabase(ctx context.Context, db string) (bool, error) {
	var out struct {
		Name    string `json:"name"`
		Created bool   `json:"created"`
	}
	if err := c.post(ctx, nil, &out, "databases", db); err != nil {
		return false, err
	}
	return out.Created, nil
}

// ListCollections returns the storage names of db's collections. Nested
// collections appear with dotted names.
func (c *Client) ListCollections(ctx context.Context, db string) ([]string, error) {
	var out []string
	if err := c.get(ctx, &out, "databases", db, "collections"); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCollection creates a collection given its storage name. A dotted
// name such as users.u1.posts creates a sub-collection.
func (c *Client) CreateCollection(ctx context.Context, db, name string) error {
	p := docpath.PathFromStorageName(name)
	if err := docpath.ValidatePath(p); err != nil {
		return err
	}
	if docpath.IsDocument(p) {
		return fmt.Errorf("create collection: %q names a document", name)
	}
	return c.post(ctx, nil, nil, "databases", db, "collections", docpath.StorageName(p))
}

// CreateSubCollection creates collection name under the document at docPath.
func (c *Client) CreateSubCollection(ctx context.Context, db, docPath, name string) error {
	if err := docpath.ValidateName(name); err != nil {
		return err
	}
	return c.CreateCollection(ctx, db, docpath.StorageName(docpath.Join(docPath, name)))
}

// ListDocuments returns the documents of the collection at path. Each
// document carries its id under "_id".
func (c *Client) ListDocuments(ctx context.Context, db, path string) ([]map[string]any, error) {
	if docpath.IsDocument(path) {
		return nil, fmt.Errorf("list documents: %q addresses a document", path)
	}
	var out struct {
		Data []map[string]any `json:"data"`
	}
	if err := c.get(ctx, &out, "documents", db, path); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Document is a fetched document and the names of its sub-collections.
type Document struct {
	Data           map[string]any `json:"data"`
	SubCollections []string       `json:"subcollections"`
}

// GetDocument returns the document at path.
func (c *Client) GetDocument(ctx context.Context, db, path string) (Document, error) {
	if !docpath.IsDocument(path) {
		return Document{}, fmt.Errorf("get document: %q addresses a collection", path)
	}
	var out Document
	if err := c.get(ctx, &out, "documents", db, path); err != nil {
		return Document{}, err
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out, nil
}

// UpsertDocument creates or replaces document id in the collection at
// collectionPath.
func (c *Client) UpsertDocument(ctx context.Context, db, collectionPath, id string, data map[string]any) error {
	if err := docpath.ValidateName(id); err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	return c.post(ctx, data, nil, "documents", db, collectionPath, id)
}

// GetMetadata returns the definition stored under key. A key without a
// definition yields an error matching ErrNotFound.
func (c *Client) GetMetadata(ctx context.Context, db, key string) (schema.Definition, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, &out, "metadata", db, key); err != nil {
		return schema.Definition{}, err
	}
	if len(out.Data) == 0 || string(out.Data) == "null" {
		return schema.Definition{}, fmt.Errorf("metadata %s: %w", key, ErrNotFound)
	}
	return schema.DecodeEnvelope(out.Data, key)
}

// ListMetadata returns every definition stored for db.
func (c *Client) ListMetadata(ctx context.Context, db string) (schema.Envelope, error) {
	var out struct {
		Data schema.Envelope `json:"data"`
	}
	if err := c.get(ctx, &out, "metadata", db); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = schema.Envelope{}
	}
	return out.Data, nil
}

// SaveMetadata overwrites the definition stored under key.
func (c *Client) SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error {
	return c.post(ctx, schema.Envelope{key: def}, nil, "metadata", db, key)
}

// Columns returns the field keys defined for the collection stored as table.
// A collection without metadata has no columns.
func (c *Client) Columns(ctx context.Context, db, table string) ([]string, error) {
	def, err := c.GetMetadata(ctx, db, docpath.KeyFromStorageName(table))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return def.Fields.Keys(), nil
}

// AuditEntry is one recorded metadata save.
type AuditEntry struct {
	ID        int64           `json:"id"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Key       string          `json:"key"`
	AppliedAt time.Time       `json:"appliedAt"`
	Summary   string          `json:"summary"`
	Added     int             `json:"added"`
	Removed   int             `json:"removed"`
	Before    json.RawMessage `json:"beforeJson,omitempty"`
	After     json.RawMessage `json:"afterJson,omitempty"`
	Diff      string          `json:"diff,omitempty"`
}

// AuditLog returns up to limit saves of key (all keys when empty), newest
// first, and the cursor of the next page.
func (c *Client) AuditLog(ctx context.Context, db, key string, limit int, cursor string) ([]AuditEntry, string, error) {
	var out struct {
		Items      []AuditEntry `json:"items"`
		NextCursor string       `json:"nextCursor"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if key != "" {
		req.SetQueryParam("key", key)
	}
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	u := c.url("audit", db)
	resp, err := req.Get(u)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", u, err)
	}
	if resp.IsError() {
		return nil, "", restyErr(resp)
	}
	return out.Items, out.NextCursor, nil
}

// AuditDiff returns one save including its unified diff.
func (c *Client) AuditDiff(ctx context.Context, db string, id int64) (AuditEntry, error) {
	var out AuditEntry
	err := c.get(ctx, &out, "audit", db, fmt.Sprint(id))
	return out, err
}

// Snapshot asks the server to write a snapshot of db to its configured
// destination and returns the file name and destination kind.
func (c *Client) Snapshot(ctx context.Context, db string) (string, string, error) {
	var out struct {
		File string `json:"file"`
		Dest string `json:"dest"`
	}
	if err := c.post(ctx, nil, &out, "snapshots", db); err != nil {
		return "", "", err
	}
	return out.File, out.Dest, nil
}
