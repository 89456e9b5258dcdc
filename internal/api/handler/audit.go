package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/faciam-dev/docmeta/internal/api/schema"
	"github.com/faciam-dev/docmeta/internal/audit"
	"github.com/faciam-dev/docmeta/internal/huma"
	"github.com/faciam-dev/docmeta/internal/util"
)

// AuditHandler serves the history of metadata saves.
type AuditHandler struct {
	Audit *audit.Recorder
}

type auditListParams struct {
	DB     string `path:"db" minLength:"1"`
	Key    string `query:"key" doc:"Only saves of this metadata key"`
	Action string `query:"action" doc:"Comma separated actions, e.g. create,update"`
	Limit  int    `query:"limit" doc:"Page size, 1 to 200 (default 50)"`
	Cursor string `query:"cursor" doc:"nextCursor of the previous page"`
}

type auditGetParams struct {
	DB string `path:"db" minLength:"1"`
	ID int64  `path:"id"`
}

type auditListOutput struct{ Body schema.AuditPage }
type auditGetOutput struct{ Body schema.AuditLog }

// RegisterAudit registers the audit history endpoints.
func RegisterAudit(api huma.API, h *AuditHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listAuditLogs",
		Method:      http.MethodGet,
		Path:        "/audit/{db}",
		Summary:     "List metadata saves",
		Tags:        []string{"Audit"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "getAuditLog",
		Method:      http.MethodGet,
		Path:        "/audit/{db}/{id}",
		Summary:     "Get one metadata save with its diff",
		Tags:        []string{"Audit"},
	}, h.get)
}

func (h *AuditHandler) list(ctx context.Context, p *auditListParams) (*auditListOutput, error) {
	limit := util.SanitizeLimit(p.Limit)
	f := audit.Filter{Key: p.Key, Limit: limit + 1}
	for _, a := range strings.Split(p.Action, ",") {
		if a = strings.TrimSpace(a); a != "" {
			f.Actions = append(f.Actions, a)
		}
	}
	if p.Cursor != "" {
		ts, id, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid cursor")
		}
		f.Before, f.BeforeID = ts, id
	}
	entries, err := h.Audit.List(ctx, p.DB, f)
	if err != nil {
		return nil, apiError("list audit logs", err)
	}
	out := &auditListOutput{}
	out.Body.Items = make([]schema.AuditLog, 0, min(len(entries), limit))
	for i, e := range entries {
		if i == limit {
			last := entries[i-1]
			out.Body.NextCursor = encodeCursor(last.At, last.ID)
			break
		}
		out.Body.Items = append(out.Body.Items, auditLog(e, false))
	}
	return out, nil
}

func (h *AuditHandler) get(ctx context.Context, p *auditGetParams) (*auditGetOutput, error) {
	e, err := h.Audit.Get(ctx, p.DB, p.ID)
	if errors.Is(err, audit.ErrNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil {
		return nil, apiError("get audit log", err)
	}
	return &auditGetOutput{Body: auditLog(e, true)}, nil
}

func auditLog(e audit.Entry, full bool) schema.AuditLog {
	l := schema.AuditLog{
		ID:        e.ID,
		Actor:     e.Actor,
		Action:    e.Action,
		Key:       e.Key,
		AppliedAt: e.At,
		Summary:   fmt.Sprintf("+%d -%d", e.Added, e.Removed),
		Added:     e.Added,
		Removed:   e.Removed,
	}
	if full {
		l.Before, l.After, l.Diff = e.Before, e.After, e.Diff
	}
	return l
}

// A cursor is "<RFC3339 time>:<id>" of the last entry of a page, URL-safe
// base64 encoded so it travels unescaped in a query string.
func encodeCursor(ts time.Time, id int64) string {
	s := fmt.Sprintf("%s:%d", ts.UTC().Format(time.RFC3339Nano), id)
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func decodeCursor(cur string) (time.Time, int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(cur)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("cursor: %w", err)
	}
	s := string(b)
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return time.Time{}, 0, fmt.Errorf("invalid cursor format: missing timestamp separator ':' in %q", s)
	}
	ts, err := time.Parse(time.RFC3339Nano, s[:idx])
	if err != nil {
		return time.Time{}, 0, err
	}
	id, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return time.Time{}, 0, fmt.Errorf("invalid cursor id in %q", s)
	}
	return ts, id, nil
}
