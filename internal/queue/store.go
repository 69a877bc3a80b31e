package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultCacheSize is the SQLite page-cache hint applied when Options leaves
// CacheSize unset, in bytes.
const DefaultCacheSize = 256000

// DefaultNamespace is the queue name used when callers do not pick one.
const DefaultNamespace = "Queue"

// Options configures Store construction. Exactly one of Path or InMemory
// must be set.
type Options struct {
	// Path locates the database file; it is created on first open.
	Path string

	// InMemory opens a private in-memory database instead of a file.
	InMemory bool

	// CacheSize is the page-cache hint in bytes. Zero means DefaultCacheSize;
	// negative values fail validation.
	CacheSize int
}

func (o *Options) validate() error {
	if o.Path == "" && !o.InMemory {
		return fmt.Errorf("%w: either a database path or in-memory must be chosen", ErrInvalidOptions)
	}
	if o.Path != "" && o.InMemory {
		return fmt.Errorf("%w: database path and in-memory are mutually exclusive", ErrInvalidOptions)
	}
	if o.CacheSize < 0 {
		return fmt.Errorf("%w: cache size must be positive, got %d", ErrInvalidOptions, o.CacheSize)
	}
	return nil
}

// Store is a shared SQLite connection hosting any number of queue
// namespaces. It is safe for concurrent use; cross-process sharing goes
// through the database file.
type Store struct {
	db    *sql.DB
	path  string
	ids   *idGenerator
	claim claimer
}

// Open validates options, connects to SQLite, applies pragmas, and selects
// the claim strategy supported by the linked SQLite version.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	cacheSize := opts.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}

	dsn := opts.Path
	if opts.InMemory {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if opts.InMemory {
		// Each pooled connection would otherwise see its own private database.
		db.SetMaxOpenConns(1)
	}

	cacheKiB := cacheSize / 1024
	if cacheKiB < 1 {
		cacheKiB = 1
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		// Negative cache_size is interpreted by SQLite as KiB.
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheKiB),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: opts.Path, ids: newIDGenerator()}

	returning, err := store.supportsReturning(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if returning {
		store.claim = returningClaimer{}
	} else {
		store.claim = txClaimer{}
	}

	return store, nil
}

// supportsReturning probes whether the linked SQLite understands
// UPDATE ... RETURNING, available since 3.35.0.
func (s *Store) supportsReturning(ctx context.Context) (bool, error) {
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return false, fmt.Errorf("query sqlite version: %w", err)
	}
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false, nil
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false, nil
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return false, nil
	}
	return major > 3 || (major == 3 && minor >= 35), nil
}

// Queue returns a handle bound to a namespace, creating its schema if
// absent. maxSize caps the number of ready messages; zero means unbounded.
func (s *Store) Queue(ctx context.Context, namespace string, maxSize int) (*Queue, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if maxSize < 0 {
		return nil, fmt.Errorf("%w: max size must not be negative, got %d", ErrInvalidOptions, maxSize)
	}
	if err := s.createSchema(ctx, namespace); err != nil {
		return nil, err
	}
	return &Queue{store: s, namespace: namespace, maxSize: maxSize}, nil
}

// Vacuum asks SQLite to reclaim free space. It has no effect on queue
// contents.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Path returns the database file location, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
