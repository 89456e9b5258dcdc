// Package audit records metadata overwrites. Saves are last-write-wins, so
// every overwrite is logged with a unified diff of the replaced definition.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/faciam-dev/goquent/orm/query"

	"github.com/faciam-dev/docmeta/internal/logger"
	pkgaudit "github.com/faciam-dev/docmeta/pkg/audit"
	"github.com/faciam-dev/docmeta/pkg/metrics"
	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/pkg/util"
)

// Actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// ErrNotFound is returned by Get for an unknown entry.
var ErrNotFound = errors.New("audit entry not found")

// memLimit bounds the history kept without a database.
const memLimit = 1000

// Entry is one recorded change.
type Entry struct {
	ID      int64
	Actor   string
	Action  string
	DB      string
	Key     string
	Before  json.RawMessage
	After   json.RawMessage
	Diff    string
	Added   int
	Removed int
	At      time.Time
}

// Filter selects entries for List. Entries come newest first; a non-zero
// Before returns only entries older than (Before, BeforeID).
type Filter struct {
	Key      string
	Actions  []string
	Limit    int
	Before   time.Time
	BeforeID int64
}

// Recorder logs metadata changes. With DB set they are written to the
// {TablePrefix}audit_logs table, otherwise the latest ones are kept in memory.
type Recorder struct {
	DB          *sql.DB
	Driver      string
	TablePrefix string

	mu     sync.Mutex
	mem    []Entry
	nextID int64
}

// Record compares before (nil for a first save) with after.
func (r *Recorder) Record(ctx context.Context, actor, db, key string, before *schema.Definition, after schema.Definition) (Entry, error) {
	e := Entry{Actor: actor, Action: ActionCreate, DB: db, Key: key, At: time.Now().UTC()}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return e, err
	}
	var beforeJSON []byte
	if before != nil {
		e.Action = ActionUpdate
		if beforeJSON, err = json.Marshal(before); err != nil {
			return e, err
		}
	}
	e.Before, e.After = beforeJSON, afterJSON
	e.Diff, e.Added, e.Removed = pkgaudit.UnifiedDiff(orEmpty(beforeJSON), afterJSON)
	metrics.AuditEvents.WithLabelValues(e.Action).Inc()
	if e.Action == ActionUpdate && (e.Added > 0 || e.Removed > 0) {
		logger.L.Info("metadata overwritten", "db", db, "key", key, "actor", actor,
			"added", e.Added, "removed", e.Removed, "diff", e.Diff)
	}

	if r == nil {
		return e, nil
	}
	if r.DB == nil {
		r.mu.Lock()
		r.nextID++
		e.ID = r.nextID
		r.mem = append(r.mem, e)
		if len(r.mem) > memLimit {
			r.mem = slices.Delete(r.mem, 0, len(r.mem)-memLimit)
		}
		r.mu.Unlock()
		return e, nil
	}
	ph := func(n int) string { return util.Placeholder(r.Driver, n) }
	q := fmt.Sprintf("INSERT INTO %saudit_logs(actor, action, db, meta_key, before_json, after_json, added_count, removed_count) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		r.TablePrefix, ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8))
	var beforeArg any
	if beforeJSON != nil {
		beforeArg = string(beforeJSON)
	}
	if _, err := r.DB.ExecContext(ctx, q, actor, e.Action, db, key, beforeArg, string(afterJSON), e.Added, e.Removed); err != nil {
		metrics.AuditErrors.WithLabelValues(e.Action).Inc()
		return e, fmt.Errorf("write audit log: %w", err)
	}
	return e, nil
}

// List returns up to f.Limit entries of db, newest first.
func (r *Recorder) List(ctx context.Context, db string, f Filter) ([]Entry, error) {
	if r == nil {
		return nil, nil
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if r.DB != nil {
		return r.listSQL(ctx, db, f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range slices.Backward(r.mem) {
		if len(out) == f.Limit {
			break
		}
		if e.DB != db || (f.Key != "" && e.Key != f.Key) {
			continue
		}
		if len(f.Actions) > 0 && !slices.Contains(f.Actions, e.Action) {
			continue
		}
		if !f.Before.IsZero() && !older(e, f.Before, f.BeforeID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func older(e Entry, at time.Time, id int64) bool {
	return e.At.Before(at) || (e.At.Equal(at) && e.ID < id)
}

// Get returns entry id of db.
func (r *Recorder) Get(ctx context.Context, db string, id int64) (Entry, error) {
	if r == nil {
		return Entry{}, ErrNotFound
	}
	if r.DB != nil {
		q := r.selectSQL(db)
		q.Where("id", id)
		q.Limit(1)
		entries, err := r.scan(ctx, q)
		if err != nil {
			return Entry{}, err
		}
		if len(entries) == 0 {
			return Entry{}, ErrNotFound
		}
		return entries[0], nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.mem, func(e Entry) bool { return e.ID == id && e.DB == db })
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	return r.mem[i], nil
}

func (r *Recorder) selectSQL(db string) *query.Query {
	return query.New(r.DB, r.TablePrefix+"audit_logs", util.DialectFromDriver(r.Driver)).
		Select("id", "actor", "action", "db", "meta_key", "before_json", "after_json", "added_count", "removed_count", "created_at").
		Where("db", db)
}

func (r *Recorder) listSQL(ctx context.Context, db string, f Filter) ([]Entry, error) {
	q := r.selectSQL(db)
	if f.Key != "" {
		q.Where("meta_key", f.Key)
	}
	if len(f.Actions) > 0 {
		q.WhereIn("action", f.Actions)
	}
	if !f.Before.IsZero() {
		q.WhereGroup(func(g *query.Query) {
			g.Where("created_at", "<", f.Before)
			g.OrWhereGroup(func(g2 *query.Query) {
				g2.Where("created_at", "=", f.Before)
				g2.Where("id", "<", f.BeforeID)
			})
		})
	}
	q.OrderBy("created_at", "desc").OrderBy("id", "desc").Limit(f.Limit)
	return r.scan(ctx, q)
}

func (r *Recorder) scan(ctx context.Context, q *query.Query) ([]Entry, error) {
	stmt, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e             Entry
			before, after sql.NullString
			at            any
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.DB, &e.Key, &before, &after, &e.Added, &e.Removed, &at); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if e.At, err = ParseTime(at); err != nil {
			return nil, err
		}
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		e.Diff, _, _ = pkgaudit.UnifiedDiff(orEmpty(e.Before), orEmpty(e.After))
		out = append(out, e)
	}
	return out, rows.Err()
}

// ParseTime converts a TIMESTAMP column value into a time.Time. Drivers like
// the MySQL driver return []byte or string when parseTime is disabled.
func ParseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	}
	return time.Time{}, fmt.Errorf("unsupported time type %T", v)
}

func parseTimeString(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02 15:04:05.000000000", "2006-01-02 15:04:05", time.RFC3339}
	for _, l := range layouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte("{}")
	}
	return b
}
