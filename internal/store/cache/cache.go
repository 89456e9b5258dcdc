// Package cache puts a Redis read-through cache in front of a store's
// metadata lookups. Saving a definition invalidates its entry and the
// database's listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/faciam-dev/docmeta/internal/logger"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/metrics"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// DefaultTTL bounds how long a definition written by another process may be
// served stale.
const DefaultTTL = 5 * time.Minute

// notFound marks a key known to have no definition.
const notFound = "-"

// Store decorates a store.Store.
type Store struct {
	store.Store
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// New wraps next. A zero ttl uses DefaultTTL.
func New(next store.Store, rdb redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{Store: next, rdb: rdb, ttl: ttl, prefix: "docmeta:"}
}

// Dial parses a redis:// URL and wraps next.
func Dial(next store.Store, url string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return New(next, redis.NewClient(opt), ttl), nil
}

func (s *Store) metaKey(db, key string) string { return s.prefix + "meta:" + db + ":" + key }
func (s *Store) listKey(db string) string      { return s.prefix + "metalist:" + db }

func (s *Store) GetMetadata(ctx context.Context, db, key string) (schema.Definition, error) {
	ck := s.metaKey(db, key)
	b, err := s.rdb.Get(ctx, ck).Bytes()
	switch {
	case err == nil && string(b) == notFound:
		metrics.CacheHits.Inc()
		return schema.Definition{}, fmt.Errorf("metadata %q: %w", key, store.ErrNotFound)
	case err == nil:
		var def schema.Definition
		if jerr := json.Unmarshal(b, &def); jerr == nil {
			metrics.CacheHits.Inc()
			return def, nil
		}
		logger.L.Warn("drop corrupt cache entry", "key", ck)
	case !errors.Is(err, redis.Nil):
		logger.L.Warn("metadata cache unavailable", "err", err)
	}
	metrics.CacheMisses.Inc()

	def, err := s.Store.GetMetadata(ctx, db, key)
	if errors.Is(err, store.ErrNotFound) {
		s.set(ctx, ck, []byte(notFound))
		return def, err
	}
	if err != nil {
		return def, err
	}
	if b, err := json.Marshal(def); err == nil {
		s.set(ctx, ck, b)
	}
	return def, nil
}

func (s *Store) ListMetadata(ctx context.Context, db string) (schema.Envelope, error) {
	ck := s.listKey(db)
	if b, err := s.rdb.Get(ctx, ck).Bytes(); err == nil {
		var env schema.Envelope
		if json.Unmarshal(b, &env) == nil {
			metrics.CacheHits.Inc()
			return env, nil
		}
	}
	metrics.CacheMisses.Inc()
	env, err := s.Store.ListMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(env); err == nil {
		s.set(ctx, ck, b)
	}
	return env, nil
}

func (s *Store) SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error {
	if err := s.Store.SaveMetadata(ctx, db, key, def); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.metaKey(db, key), s.listKey(db)).Err(); err != nil {
		logger.L.Warn("invalidate metadata cache", "key", key, "err", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	err := s.Store.Close(ctx)
	return errors.Join(err, s.rdb.Close())
}

func (s *Store) set(ctx context.Context, key string, val []byte) {
	if err := s.rdb.Set(ctx, key, val, s.ttl).Err(); err != nil {
		logger.L.Warn("metadata cache write", "key", key, "err", err)
	}
}
