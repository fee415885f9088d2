// Package history persists per-tenant historical windows in BadgerDB.
//
// Each tenant's window is a single key holding the JSON-encoded results,
// written with a native TTL so idle tenants age out without a sweeper.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gzhole/logshield/internal/analyzer"
)

const keyPrefix = "history:"

var tracer = otel.Tracer("logshield/history")

// Config configures a BadgerStore.
type Config struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
	Logger         *slog.Logger
}

// DefaultConfig returns the on-disk configuration used by the CLI and server.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration without disk persistence.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// BadgerStore implements analyzer.HistoryCache on BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ analyzer.HistoryCache = (*BadgerStore)(nil)

// badgerLogger routes badger's internal logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens (creating if needed) the store described by cfg.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("history dir is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history dir %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	s := &BadgerStore{db: db, logger: logger, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		go s.runGC(cfg.GCInterval, ratio)
	} else {
		close(s.done)
	}
	return s, nil
}

func key(tenant string) []byte { return []byte(keyPrefix + tenant) }

// Get returns the tenant's window. A missing or expired key is a miss.
func (s *BadgerStore) Get(ctx context.Context, tenant string) ([]analyzer.Result, bool, error) {
	_, span := tracer.Start(ctx, "history.BadgerStore.Get",
		trace.WithAttributes(attribute.String("tenant", tenant)))
	defer span.End()

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(tenant))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("failed to read history for %q: %w", tenant, err)
	}

	var results []analyzer.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("failed to decode history for %q: %w", tenant, err)
	}
	span.SetAttributes(attribute.Bool("found", true), attribute.Int("size", len(results)))
	return results, true, nil
}

// Set replaces the tenant's window. A ttl <= 0 stores it without expiry.
func (s *BadgerStore) Set(ctx context.Context, tenant string, results []analyzer.Result, ttl time.Duration) error {
	_, span := tracer.Start(ctx, "history.BadgerStore.Set",
		trace.WithAttributes(
			attribute.String("tenant", tenant),
			attribute.Int("size", len(results)),
			attribute.String("ttl", ttl.String()),
		))
	defer span.End()

	if results == nil {
		results = []analyzer.Result{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode history for %q: %w", tenant, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(tenant), raw)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write history for %q: %w", tenant, err)
	}
	return nil
}

// Delete drops the tenant's window. Deleting a missing tenant is not an error.
func (s *BadgerStore) Delete(ctx context.Context, tenant string) error {
	_, span := tracer.Start(ctx, "history.BadgerStore.Delete",
		trace.WithAttributes(attribute.String("tenant", tenant)))
	defer span.End()

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(tenant))
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete history for %q: %w", tenant, err)
	}
	return nil
}

// Tenants lists tenants that currently have a window, in key order.
func (s *BadgerStore) Tenants(ctx context.Context) ([]string, error) {
	_, span := tracer.Start(ctx, "history.BadgerStore.Tenants")
	defer span.End()

	var tenants []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := it.Item().Key()
			tenants = append(tenants, string(k[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list history tenants: %w", err)
	}
	return tenants, nil
}

// Close stops background GC and closes the database.
func (s *BadgerStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return s.db.Close()
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for {
				// RunValueLogGC rewrites at most one file per call.
				if err := s.db.RunValueLogGC(ratio); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn("history value log gc failed", "error", err)
					}
					break
				}
			}
		}
	}
}
