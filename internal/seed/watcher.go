// Package seed loads metadata YAML files from a directory into a store and
// keeps watching the directory for changes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/faciam-dev/docmeta/pkg/metacodec"
	"github.com/faciam-dev/docmeta/pkg/metrics"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// Saver receives the definitions read from seed files.
type Saver interface {
	SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error
}

// Watcher watches a directory of metadata files and saves every definition
// they hold. Files without a database use the watcher's default database.
type Watcher struct {
	dir       string
	defaultDB string
	saver     Saver
	debounce  time.Duration
	logger    *slog.Logger

	stopOnce sync.Once
}

func NewWatcher(dir, defaultDB string, saver Saver, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{dir: dir, defaultDB: defaultDB, saver: saver, debounce: debounce, logger: logger}
}

func isSeedFile(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".yaml" || ext == ".yml"
}

// LoadAll applies every seed file currently in the directory, in name order.
func (w *Watcher) LoadAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isSeedFile(e.Name()) {
			paths = append(paths, filepath.Join(w.dir, e.Name()))
		}
	}
	var errs []error
	for _, p := range paths {
		if err := w.apply(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start begins watching. Returns stop function.
func (w *Watcher) Start(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		cancel()
		return nil, err
	}

	changes := make(chan string, 1024)
	go func() {
		defer fw.Close()
		for {
			select {
			case ev := <-fw.Events:
				if !isSeedFile(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				changes <- ev.Name
			case err := <-fw.Errors:
				if err != nil {
					w.logger.Warn("fsnotify error", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(w.debounce)
		defer ticker.Stop()
		pending := map[string]struct{}{}
		for {
			select {
			case p := <-changes:
				pending[p] = struct{}{}
			case <-ticker.C:
				if len(pending) == 0 {
					continue
				}
				paths := make([]string, 0, len(pending))
				for p := range pending {
					paths = append(paths, p)
				}
				slices.Sort(paths)
				pending = map[string]struct{}{}
				w.applyPaths(ctx, paths)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { w.stopOnce.Do(cancel) }, nil
}

func (w *Watcher) applyPaths(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := w.apply(ctx, p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			w.logger.Warn("skip seed file", "path", p, "err", err)
		}
	}
}

func (w *Watcher) apply(ctx context.Context, p string) error {
	b, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	f, err := metacodec.Decode(b)
	if err == nil {
		err = w.save(ctx, f)
	}
	if err != nil {
		metrics.SeedLoads.WithLabelValues("error").Inc()
		return fmt.Errorf("seed %s: %w", filepath.Base(p), err)
	}
	metrics.SeedLoads.WithLabelValues("ok").Inc()
	w.logger.Info("seed applied", "path", p, "definitions", len(f.Definitions))
	return nil
}

func (w *Watcher) save(ctx context.Context, f metacodec.File) error {
	db := f.Database
	if db == "" {
		db = w.defaultDB
	}
	if db == "" {
		return errors.New("no database in file and no default configured")
	}
	for _, e := range f.Definitions {
		if err := e.Check(); err != nil {
			return fmt.Errorf("%s: %w", e.Key, err)
		}
	}
	for _, e := range f.Definitions {
		if err := w.saver.SaveMetadata(ctx, db, e.Key, e.Definition); err != nil {
			return fmt.Errorf("%s: %w", e.Key, err)
		}
	}
	return nil
}
