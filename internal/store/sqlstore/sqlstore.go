// Package sqlstore keeps databases, collections, documents and schema
// definitions in four relational tables. Documents and definitions are stored
// as JSON text. SQLite, PostgreSQL and MySQL are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"

	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/pkg/util"
)

// DefaultPrefix is prepended to every table name when none is configured.
const DefaultPrefix = "docmeta_"

var prefixRe = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Store is a store backed by database/sql.
type Store struct {
	db      *sql.DB
	driver  string
	dialect ormdriver.Dialect
	prefix  string
}

var _ store.Store = (*Store)(nil)

// Open opens dsn with driver (sqlite3, postgres or mysql) and creates the
// tables when missing.
func Open(ctx context.Context, driver, dsn, prefix string) (*Store, error) {
	for _, scheme := range []string{"mysql://", "sqlite3://", "sqlite://"} {
		dsn = strings.TrimPrefix(dsn, scheme)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, driver, prefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection without touching the schema.
func New(db *sql.DB, driver, prefix string) (*Store, error) {
	switch driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !prefixRe.MatchString(prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return &Store{db: db, driver: driver, dialect: util.DialectFromDriver(driver), prefix: prefix}, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// Prefix returns the table prefix.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) Close(context.Context) error { return s.db.Close() }

func (s *Store) t(name string) string { return s.prefix + name }

func (s *Store) ph(n int) string { return util.Placeholder(s.driver, n) }

func (s *Store) q(table string) *query.Query {
	return query.New(s.db, s.t(table), s.dialect)
}

// Migrate creates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	text, serial := "TEXT", "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch s.driver {
	case "postgres":
		serial = "BIGSERIAL PRIMARY KEY"
	case "mysql":
		text, serial = "LONGTEXT", "BIGINT AUTO_INCREMENT PRIMARY KEY"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name VARCHAR(191) NOT NULL PRIMARY KEY)`, s.t("databases")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (db VARCHAR(191) NOT NULL, name VARCHAR(191) NOT NULL, PRIMARY KEY (db, name))`, s.t("collections")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (db VARCHAR(191) NOT NULL, coll VARCHAR(191) NOT NULL, id VARCHAR(191) NOT NULL, body %s NOT NULL, PRIMARY KEY (db, coll, id))`, s.t("documents"), text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (db VARCHAR(191) NOT NULL, meta_key VARCHAR(191) NOT NULL, body %s NOT NULL, PRIMARY KEY (db, meta_key))`, s.t("metadata"), text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id %s, name VARCHAR(191) NOT NULL, payload %s NOT NULL, attempts INT NOT NULL, last_error %s, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`, s.t("events_failed"), serial, text, text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id %s, actor VARCHAR(191) NOT NULL, action VARCHAR(32) NOT NULL, db VARCHAR(191) NOT NULL, meta_key VARCHAR(191) NOT NULL, before_json %s, after_json %s, added_count INT NOT NULL DEFAULT 0, removed_count INT NOT NULL DEFAULT 0, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`, s.t("audit_logs"), serial, text, text),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// insertIgnore inserts a row unless its primary key exists and reports
// whether a row was written.
func (s *Store) insertIgnore(ctx context.Context, table string, cols []string, args ...any) (bool, error) {
	phs := make([]string, len(cols))
	for i := range cols {
		phs[i] = s.ph(i + 1)
	}
	var stmt string
	if s.driver == "mysql" {
		stmt = fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", s.t(table), strings.Join(cols, ", "), strings.Join(phs, ", "))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", s.t(table), strings.Join(cols, ", "), strings.Join(phs, ", "))
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// upsertBody writes body into the row identified by keys, replacing it when
// present.
func (s *Store) upsertBody(ctx context.Context, table string, keyCols []string, keys []any, body string) error {
	cols := append(append([]string{}, keyCols...), "body")
	phs := make([]string, len(cols))
	for i := range cols {
		phs[i] = s.ph(i + 1)
	}
	var stmt string
	if s.driver == "mysql" {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE body = VALUES(body)",
			s.t(table), strings.Join(cols, ", "), strings.Join(phs, ", "))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET body = excluded.body",
			s.t(table), strings.Join(cols, ", "), strings.Join(phs, ", "), strings.Join(keyCols, ", "))
	}
	_, err := s.db.ExecContext(ctx, stmt, append(keys, body)...)
	return err
}

func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	var rows []struct {
		Name string `db:"name"`
	}
	if err := s.q("databases").Select("name").OrderBy("name", "asc").WithContext(ctx).Get(&rows); err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out, nil
}

func (s *Store) CreateDatabase(ctx context.Context, db string) (bool, error) {
	if err := docpath.ValidateName(db); err != nil {
		return false, err
	}
	created, err := s.insertIgnore(ctx, "databases", []string{"name"}, db)
	if err != nil {
		return false, fmt.Errorf("create database %s: %w", db, err)
	}
	return created, nil
}

func (s *Store) dbExists(ctx context.Context, db string) error {
	var row struct {
		Name string `db:"name"`
	}
	err := s.q("databases").Select("name").Where("name", db).WithContext(ctx).First(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("database %q: %w", db, store.ErrNotFound)
	}
	return err
}

func (s *Store) ListCollections(ctx context.Context, db string) ([]string, error) {
	if err := s.dbExists(ctx, db); err != nil {
		return nil, err
	}
	var rows []struct {
		Name string `db:"name"`
	}
	if err := s.q("collections").Select("name").Where("db", db).OrderBy("name", "asc").WithContext(ctx).Get(&rows); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out, nil
}

func (s *Store) CreateCollection(ctx context.Context, db, name string) error {
	p := docpath.PathFromStorageName(name)
	if err := docpath.ValidatePath(p); err != nil {
		return err
	}
	if docpath.IsDocument(p) {
		return fmt.Errorf("collection %q addresses a document", name)
	}
	if _, err := s.CreateDatabase(ctx, db); err != nil {
		return err
	}
	created, err := s.insertIgnore(ctx, "collections", []string{"db", "name"}, db, docpath.StorageName(p))
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if !created {
		return fmt.Errorf("collection %q: %w", name, store.ErrExists)
	}
	return nil
}

func (s *Store) collectionExists(ctx context.Context, db, name string) error {
	var row struct {
		Name string `db:"name"`
	}
	err := s.q("collections").Select("name").Where("db", db).Where("name", name).WithContext(ctx).First(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("collection %q: %w", name, store.ErrNotFound)
	}
	return err
}

type bodyRow struct {
	ID   string `db:"id"`
	Body string `db:"body"`
}

func decodeDocument(r bodyRow) (map[string]any, error) {
	doc := map[string]any{}
	if err := json.Unmarshal([]byte(r.Body), &doc); err != nil {
		return nil, fmt.Errorf("document %s: %w", r.ID, err)
	}
	doc[store.IDField] = r.ID
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, db, collection string) ([]map[string]any, error) {
	if err := s.collectionExists(ctx, db, collection); err != nil {
		return nil, err
	}
	var rows []bodyRow
	err := s.q("documents").Select("id", "body").Where("db", db).Where("coll", collection).
		OrderBy("id", "asc").WithContext(ctx).Get(&rows)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		doc, err := decodeDocument(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, db, collection, id string) (map[string]any, error) {
	var r bodyRow
	err := s.q("documents").Select("id", "body").Where("db", db).Where("coll", collection).Where("id", id).
		WithContext(ctx).First(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decodeDocument(r)
}

func (s *Store) UpsertDocument(ctx context.Context, db, collection, id string, data map[string]any) error {
	if err := docpath.ValidateName(id); err != nil {
		return err
	}
	body := make(map[string]any, len(data))
	for k, v := range data {
		if k != store.IDField {
			body[k] = v
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if _, err := s.CreateDatabase(ctx, db); err != nil {
		return err
	}
	if _, err := s.insertIgnore(ctx, "collections", []string{"db", "name"}, db, collection); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	if err := s.upsertBody(ctx, "documents", []string{"db", "coll", "id"}, []any{db, collection, id}, string(b)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, db, key string) (schema.Definition, error) {
	var r struct {
		Body string `db:"body"`
	}
	err := s.q("metadata").Select("body").Where("db", db).Where("meta_key", key).WithContext(ctx).First(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Definition{}, fmt.Errorf("metadata %q: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return schema.Definition{}, fmt.Errorf("get metadata: %w", err)
	}
	var def schema.Definition
	if err := json.Unmarshal([]byte(r.Body), &def); err != nil {
		return schema.Definition{}, fmt.Errorf("metadata %q: %w", key, err)
	}
	return def, nil
}

func (s *Store) ListMetadata(ctx context.Context, db string) (schema.Envelope, error) {
	var rows []struct {
		Key  string `db:"meta_key"`
		Body string `db:"body"`
	}
	if err := s.q("metadata").Select("meta_key", "body").Where("db", db).WithContext(ctx).Get(&rows); err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	out := make(schema.Envelope, len(rows))
	for _, r := range rows {
		var def schema.Definition
		if err := json.Unmarshal([]byte(r.Body), &def); err != nil {
			return nil, fmt.Errorf("metadata %q: %w", r.Key, err)
		}
		out[r.Key] = def
	}
	return out, nil
}

func (s *Store) SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error {
	if key == "" {
		return fmt.Errorf("save metadata: empty key")
	}
	b, err := json.Marshal(def)
	if err != nil {
		return err
	}
	if _, err := s.CreateDatabase(ctx, db); err != nil {
		return err
	}
	if err := s.upsertBody(ctx, "metadata", []string{"db", "meta_key"}, []any{db, key}, string(b)); err != nil {
		return fmt.Errorf("save metadata %q: %w", key, err)
	}
	return nil
}
