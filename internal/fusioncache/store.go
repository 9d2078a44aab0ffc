package fusioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"fusiondex/internal/fileutil"
	"fusiondex/internal/fusion"
	"fusiondex/internal/logging"
)

const lockRetryDelay = 50 * time.Millisecond

// Source identifies which file populated the store.
type Source string

const (
	SourceNone     Source = "none"
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Options configures a Store. ReadOnly disables disk writes; merged entries
// then live in memory only.
type Options struct {
	Path         string
	FallbackPath string
	ReadOnly     bool
	Logger       *slog.Logger
}

// Store provides thread-safe access to the fusion cache.
type Store struct {
	path         string
	fallbackPath string
	readOnly     bool
	logger       *slog.Logger
	lock         *flock.Flock
	writeMu      sync.Mutex

	mu      sync.RWMutex
	entries map[fusion.Key]fusion.Record
	source  Source
}

// New creates an empty store. Call Load to populate it.
func New(opts Options) *Store {
	logger := logging.NewComponentLogger(opts.Logger, "fusioncache")
	s := &Store{
		path:         opts.Path,
		fallbackPath: opts.FallbackPath,
		readOnly:     opts.ReadOnly || opts.Path == "",
		logger:       logger,
		entries:      make(map[fusion.Key]fusion.Record),
		source:       SourceNone,
	}
	if opts.Path != "" {
		s.lock = flock.New(opts.Path + ".lock")
	}
	return s
}

// Open creates a store and loads it.
func Open(ctx context.Context, opts Options) *Store {
	s := New(opts)
	s.Load(ctx)
	return s
}

// Load replaces the in-memory entries with the primary cache file, or the
// fallback file when the primary is absent or unreadable. It never fails: when
// neither file yields entries the store is empty and a warning is logged.
func (s *Store) Load(ctx context.Context) {
	logger := logging.WithContext(ctx, s.logger)

	entries, primaryErr := readRecords(s.path)
	source := SourcePrimary
	if primaryErr != nil {
		if !errors.Is(primaryErr, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "primary fusion cache unreadable", "cache_load_failed",
				logging.String("path", s.path),
				logging.Error(primaryErr),
				logging.String(logging.FieldErrorHint, "inspect or delete the cache file; it is rewritten on the next merge"),
				logging.String(logging.FieldImpact, "trying fallback cache"))
		}
		var fallbackErr error
		entries, fallbackErr = readRecords(s.fallbackPath)
		source = SourceFallback
		if fallbackErr != nil {
			entries = make(map[fusion.Key]fusion.Record)
			source = SourceNone
			logging.WarnWithContext(logger, "no fusion cache loaded", "cache_empty",
				logging.String("path", s.path),
				logging.String("fallback_path", s.fallbackPath),
				logging.String("fallback_error", fallbackErr.Error()),
				logging.String(logging.FieldErrorHint, "run analyze to populate the cache"),
				logging.String(logging.FieldImpact, "every pair will be fetched from the network"))
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.source = source
	s.mu.Unlock()

	logger.Debug("fusion cache loaded",
		logging.Int("entry_count", len(entries)),
		logging.String("source", string(source)))
}

// Get returns the record for key.
func (s *Store) Get(key fusion.Key) (fusion.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[key]
	return rec, ok
}

// Has reports whether key is cached.
func (s *Store) Has(key fusion.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns every cached key in pair order.
func (s *Store) Keys() []fusion.Key {
	s.mu.RLock()
	keys := make([]fusion.Key, 0, len(s.entries))
	pairs := make(map[fusion.Key]fusion.Pair, len(s.entries))
	for key, rec := range s.entries {
		keys = append(keys, key)
		pairs[key] = rec.Pair
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		a, b := pairs[keys[i]], pairs[keys[j]]
		if a.Primary != b.Primary {
			return a.Primary < b.Primary
		}
		return a.Secondary < b.Secondary
	})
	return keys
}

// Snapshot returns a copy of the cached records.
func (s *Store) Snapshot() map[fusion.Key]fusion.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[fusion.Key]fusion.Record, len(s.entries))
	for key, rec := range s.entries {
		out[key] = rec
	}
	return out
}

// Source reports which file populated the store on the last Load.
func (s *Store) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// ReadOnly reports whether merges skip the disk.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// MergeAndPersist adds entries to the store and, unless read-only, writes
// them into the primary cache file. Entries already on disk are preserved even
// when this process never loaded them. The in-memory merge happens first, so
// a persistence error leaves the records available for the current run.
func (s *Store) MergeAndPersist(ctx context.Context, entries map[fusion.Key]fusion.Record) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	for key, rec := range entries {
		s.entries[key] = rec
	}
	s.mu.Unlock()

	if s.readOnly {
		return nil
	}

	// flock only excludes other processes; a second lock on the same handle
	// succeeds immediately.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return errors.New("acquire cache lock: not acquired")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release cache lock", logging.Error(err))
		}
	}()

	onDisk, err := s.readDiskForMerge(ctx)
	if err != nil {
		return err
	}
	for key, rec := range entries {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		onDisk[string(key)] = body
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	logging.WithContext(ctx, s.logger).Debug("fusion cache persisted",
		logging.Int("new_entries", len(entries)),
		logging.Int("entry_count", len(onDisk)),
		logging.String("path", s.path))
	return nil
}

// readDiskForMerge returns the raw on-disk entries to merge into. A missing
// primary file is seeded from the fallback; a corrupt primary file is moved
// aside so it can be inspected later.
func (s *Store) readDiskForMerge(ctx context.Context) (map[string]json.RawMessage, error) {
	raw, err := readRaw(s.path)
	if err == nil {
		return raw, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("read cache file: %w", err)
		}
		aside := s.path + ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return nil, fmt.Errorf("move corrupt cache aside: %w", renameErr)
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "corrupt fusion cache moved aside", "cache_corrupt",
			logging.String("path", s.path),
			logging.String("moved_to", aside),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the moved file for recoverable entries"),
			logging.String(logging.FieldImpact, "cache rebuilt from fallback and new entries"))
	}

	fallback, fbErr := readRaw(s.fallbackPath)
	if fbErr != nil {
		return make(map[string]json.RawMessage), nil
	}
	return fallback, nil
}

func readRaw(path string) (map[string]json.RawMessage, error) {
	if path == "" {
		return nil, fs.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// readRecords decodes a cache file into typed records. Entries whose key does
// not parse or whose body does not decode are skipped.
func readRecords(path string) (map[fusion.Key]fusion.Record, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	out := make(map[fusion.Key]fusion.Record, len(raw))
	for rawKey, body := range raw {
		pair, err := fusion.ParseKey(rawKey)
		if err != nil {
			continue
		}
		var rec fusion.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			continue
		}
		rec.Pair = pair
		out[pair.Key()] = rec
	}
	return out, nil
}
