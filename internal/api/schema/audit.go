package schema

import (
	"encoding/json"
	"time"
)

// AuditLog is one recorded metadata save as returned by GET /audit/{db}.
type AuditLog struct {
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

// AuditPage is a page of audit logs, newest first.
type AuditPage struct {
	Items      []AuditLog `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
