package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

func TestRecordWithoutDB(t *testing.T) {
	var r *Recorder
	before := schema.Definition{Fields: schema.NewFields(schema.NewField("name"), schema.NewField("age"))}
	after := schema.Definition{Fields: schema.NewFields(schema.NewField("name"))}
	e, err := r.Record(context.Background(), "cli", "app", "users", &before, after)
	if err != nil {
		t.Fatal(err)
	}
	if e.Action != ActionUpdate || e.Removed == 0 || e.Added != 0 {
		t.Fatalf("entry = %+v", e)
	}
	if !strings.Contains(e.Diff, `-    "age": {`) {
		t.Fatalf("diff:\n%s", e.Diff)
	}
}

func TestRecordWritesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	mock.ExpectExec(`INSERT INTO docmeta_audit_logs\(actor, action, db, meta_key, before_json, after_json, added_count, removed_count\) VALUES \(\?, \?, \?, \?, \?, \?, \?, \?\)`).
		WithArgs("api", ActionCreate, "app", "users", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := &Recorder{DB: db, Driver: "mysql", TablePrefix: "docmeta_"}
	e, err := r.Record(context.Background(), "api", "app", "users", nil, schema.Definition{Fields: schema.NewFields(schema.NewField("name"))})
	if err != nil {
		t.Fatal(err)
	}
	if e.Action != ActionCreate || e.Added == 0 {
		t.Fatalf("entry = %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryInMemory(t *testing.T) {
	ctx := context.Background()
	r := &Recorder{}
	v1 := schema.Definition{Fields: schema.NewFields(schema.NewField("name"))}
	v2 := schema.Definition{Fields: schema.NewFields(schema.NewField("name"), schema.NewField("age"))}
	if _, err := r.Record(ctx, "a", "app", "users", nil, v1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Record(ctx, "b", "app", "users", &v1, v2); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Record(ctx, "c", "app", "orders", nil, v1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Record(ctx, "d", "other", "users", nil, v1); err != nil {
		t.Fatal(err)
	}

	all, err := r.List(ctx, "app", Filter{})
	if err != nil {
		t.Fatal(err)
	}
	var actors []string
	for _, e := range all {
		actors = append(actors, e.Actor)
	}
	if got := strings.Join(actors, ","); got != "c,b,a" {
		t.Fatalf("actors = %s", got)
	}

	users, _ := r.List(ctx, "app", Filter{Key: "users", Actions: []string{ActionUpdate}})
	if len(users) != 1 || users[0].Actor != "b" || users[0].Added == 0 {
		t.Fatalf("filtered = %+v", users)
	}

	page, _ := r.List(ctx, "app", Filter{Limit: 1, Before: all[0].At, BeforeID: all[0].ID})
	if len(page) != 1 || page[0].Actor != "b" {
		t.Fatalf("page = %+v", page)
	}

	got, err := r.Get(ctx, "app", users[0].ID)
	if err != nil || !strings.Contains(got.Diff, "age") {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if _, err := r.Get(ctx, "other", users[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListSQL(t *testing.T) {
	match := sqlmock.QueryMatcherFunc(func(_, actual string) error {
		if !strings.Contains(actual, "docmeta_audit_logs") {
			return fmt.Errorf("unexpected query %q", actual)
		}
		return nil
	})
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(match))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cols := []string{"id", "actor", "action", "db", "meta_key", "before_json", "after_json", "added_count", "removed_count", "created_at"}
	mock.ExpectQuery("audit_logs").WillReturnRows(sqlmock.NewRows(cols).
		AddRow(2, "cli", ActionUpdate, "app", "users", `{"fields":{}}`, `{"fields":{"a":{}}}`, 1, 0, "2026-01-02 03:04:05").
		AddRow(1, "cli", ActionCreate, "app", "users", nil, `{"fields":{}}`, 1, 0, []byte("2026-01-01 00:00:00")))

	r := &Recorder{DB: db, Driver: "mysql", TablePrefix: "docmeta_"}
	got, err := r.List(context.Background(), "app", Filter{Key: "users"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].Before != nil {
		t.Fatalf("entries = %+v", got)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !got[0].At.Equal(want) {
		t.Fatalf("at = %v", got[0].At)
	}
	if !strings.Contains(got[0].Diff, `"a"`) {
		t.Fatalf("diff:\n%s", got[0].Diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestParseTime(t *testing.T) {
	for _, in := range []any{"2026-01-02T03:04:05Z", []byte("2026-01-02 03:04:05"), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)} {
		got, err := ParseTime(in)
		if err != nil || got.Year() != 2026 || got.Hour() != 3 {
			t.Fatalf("ParseTime(%v) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTime(42); err == nil {
		t.Fatal("expected error for int")
	}
}
