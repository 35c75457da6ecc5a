// Package store persists the run ledger and the index memo table in an
// embedded BadgerDB under the output directory's state folder.
//
// Keys:
//
//	run/<run-id>      → PipelineRun JSON
//	index/<index-key> → IndexDatabase JSON
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

const (
	runPrefix   = "run/"
	indexPrefix = "index/"
)

// Config holds configuration for the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory disables disk persistence (tests).
	InMemory bool

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool
}

// Store is the badger-backed run ledger and index memo.
// It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: store path", scribeerrors.ErrEmptyValue)
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: zerolog.Ctx(ctx).With().Str("component", "store").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun upserts a pipeline run.
func (s *Store) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id", scribeerrors.ErrEmptyValue)
	}
	return s.put(ctx, runPrefix+run.ID, run)
}

// GetRun loads a run by ID. A unique ID prefix is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	var run domain.PipelineRun
	err := s.get(runPrefix+id, &run)
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, err
	}

	matches, err := s.scanRuns(ctx, runPrefix+id)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", scribeerrors.ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matches %d runs", scribeerrors.ErrInvalidArgument, id, len(matches))
	}
}

// ListRuns returns runs newest first. A limit of 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	runs, err := s.scanRuns(ctx, runPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetIndex looks up a memoized index by key.
func (s *Store) GetIndex(ctx context.Context, key string) (*domain.IndexDatabase, bool, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, false, err
	}

	var idx domain.IndexDatabase
	err := s.get(indexPrefix+key, &idx)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &idx, true, nil
}

// PutIndex memoizes an index under its key.
func (s *Store) PutIndex(ctx context.Context, idx *domain.IndexDatabase) error {
	if idx == nil || idx.Key == "" {
		return fmt.Errorf("%w: index key", scribeerrors.ErrEmptyValue)
	}
	return s.put(ctx, indexPrefix+idx.Key, idx)
}

// DeleteIndex drops a memo entry, e.g. when its index file vanished.
func (s *Store) DeleteIndex(ctx context.Context, key string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(indexPrefix + key))
	})
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, v); err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
			return nil
		})
	})
}

func (s *Store) scanRuns(ctx context.Context, prefix string) ([]*domain.PipelineRun, error) {
	log := zerolog.Ctx(ctx)
	var runs []*domain.PipelineRun

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctxutil.Canceled(ctx); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var run domain.PipelineRun
				if err := json.Unmarshal(val, &run); err != nil {
					log.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable run")
					return nil
				}
				runs = append(runs, &run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return runs, err
}

// badgerLogger routes badger's internal logging into zerolog. Info output
// is demoted to debug; badger is chatty on open and close.
type badgerLogger struct {
	log zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
