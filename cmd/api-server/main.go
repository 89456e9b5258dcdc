package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/go-co-op/gocron"

	"github.com/faciam-dev/docmeta/internal/events"
	"github.com/faciam-dev/docmeta/internal/logger"
	"github.com/faciam-dev/docmeta/internal/seed"
	"github.com/faciam-dev/docmeta/internal/server"
	"github.com/faciam-dev/docmeta/internal/snapshot"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/internal/store/cache"
	"github.com/faciam-dev/docmeta/internal/store/memstore"
	"github.com/faciam-dev/docmeta/pkg/crypto"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	"github.com/faciam-dev/docmeta/pkg/metrics"
	"github.com/faciam-dev/docmeta/pkg/util"
)

func main() {
	dsn := flag.String("dsn", util.GetEnv("DOCMETA_DSN", "memory"), "store DSN: memory, mongodb://, postgres://, mysql://, sqlite file")
	driver := flag.String("driver", "", "store driver (detected from the DSN when empty)")
	tblPrefix := flag.String("table-prefix", util.GetEnv("TABLE_PREFIX", "docmeta_"), "SQL table prefix")
	addr := flag.String("addr", ":8080", "listen address")
	redisURL := flag.String("redis", util.GetEnv("DOCMETA_REDIS_URL", ""), "redis URL for the metadata cache")
	eventsConfig := flag.String("events-config", util.GetEnv(events.EnvConfig, ""), "events YAML file")
	seedDir := flag.String("seed-dir", "", "directory of metadata YAML files to load and watch")
	seedDB := flag.String("seed-db", "", "database for seed files that name none")
	demo := flag.String("demo", "", "load the demo dataset into this database (memory store only)")
	snapDir := flag.String("snapshot-dir", "", "write metadata snapshots to this directory")
	snapBucket := flag.String("snapshot-s3", "", "write metadata snapshots to this S3 bucket")
	snapCron := flag.String("snapshot-cron", "0 3 * * *", "snapshot schedule")
	openapi := flag.String("openapi", "", "write OpenAPI JSON and exit")
	logFormat := flag.String("log-format", util.GetEnv("DOCMETA_LOG_FORMAT", "text"), "log format: text or json")
	logLevel := flag.String("log-level", util.GetEnv("DOCMETA_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	l, err := logger.New(os.Stdout, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.Set(l)

	if *driver == "" {
		detected, err := util.DetectDriver(*dsn)
		if err != nil {
			logger.L.Error("detect driver", "dsn", *dsn, "err", err)
			os.Exit(1)
		}
		*driver = detected
	}
	if err := crypto.CheckEnv(); err != nil {
		logger.L.Warn("AES256 fields cannot be written", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, sqlStore, err := server.OpenStore(ctx, *driver, *dsn, *tblPrefix)
	if err != nil {
		logger.L.Error("open store", "driver", *driver, "err", err)
		os.Exit(1)
	}
	if *demo != "" {
		if ms, ok := base.(*memstore.Store); ok {
			ms.Load(*demo, doctree.Demo())
		} else {
			logger.L.Warn("demo dataset needs the memory store", "driver", *driver)
		}
	}
	var st store.Store = base
	if *redisURL != "" {
		cached, err := cache.Dial(base, *redisURL, cache.DefaultTTL)
		if err != nil {
			logger.L.Error("redis", "err", err)
			os.Exit(1)
		}
		st = cached
	}
	defer st.Close(context.Background())

	dest := snapshotDest(ctx, *snapDir, *snapBucket)
	api, err := server.New(server.Config{Store: st, SQL: sqlStore, EventsConfig: *eventsConfig, Snapshots: dest})
	if err != nil {
		logger.L.Error("Failed to build API", "err", err)
		os.Exit(1)
	}

	if *openapi != "" {
		data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
		if err != nil {
			logger.L.Error("marshal openapi", "err", err)
			os.Exit(1)
		}
		p := filepath.Clean(*openapi)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			logger.L.Error("write openapi", "err", err)
			os.Exit(1)
		}
		return
	}

	if *seedDir != "" {
		w := seed.NewWatcher(*seedDir, *seedDB, st, 0, logger.L)
		if err := w.LoadAll(ctx); err != nil {
			logger.L.Error("load seeds", "dir", *seedDir, "err", err)
		}
		stopSeeds, err := w.Start(ctx)
		if err != nil {
			logger.L.Error("watch seeds", "dir", *seedDir, "err", err)
		} else {
			defer stopSeeds()
		}
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(30).Seconds().Do(func() {
		if err := metrics.RefreshGauges(ctx, st); err != nil {
			logger.L.Error("refresh gauges", "err", err)
		}
	}); err != nil {
		logger.L.Error("schedule gauges", "err", err)
	}
	if dest != nil {
		if _, err := s.Cron(*snapCron).Do(func() { snapshotAll(ctx, st, dest) }); err != nil {
			logger.L.Error("schedule snapshots", "err", err)
		}
	}
	s.StartAsync()
	defer s.Stop()

	logger.L.Info("listening", "addr", *addr, "driver", *driver)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.Adapter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}
	if events.Default != nil {
		events.Default.Wait()
	}
}

func snapshotDest(ctx context.Context, dir, bucket string) snapshot.Dest {
	switch {
	case bucket != "":
		d, err := snapshot.NewS3(ctx, bucket, "docmeta")
		if err != nil {
			logger.L.Error("snapshot s3", "err", err)
			return nil
		}
		return d
	case dir != "":
		return snapshot.LocalDir{Path: dir}
	}
	return nil
}

func snapshotAll(ctx context.Context, st store.Store, dest snapshot.Dest) {
	dbs, err := st.ListDatabases(ctx)
	if err != nil {
		logger.L.Error("snapshot list databases", "err", err)
		return
	}
	for _, db := range dbs {
		name, err := snapshot.Export(ctx, st, db, dest)
		if err != nil {
			logger.L.Error("snapshot", "db", db, "err", err)
			continue
		}
		logger.L.Info("snapshot written", "db", db, "file", name)
	}
}
