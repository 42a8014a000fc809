package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"slidecast/internal/config"
)

// Store persists lecture jobs and their per-slide deck checkpoints in SQLite.
// The daemon and CLI commands open the same file, so every write retries
// while another process holds the lock.
type Store struct {
	db   *sql.DB
	path string
}

// sqliteBusy is the primary SQLITE_BUSY result code; extended codes such as
// SQLITE_BUSY_SNAPSHOT carry it in their low byte.
const sqliteBusy = 5

// lockRetry bounds how long a single write waits on a competing process.
var lockRetry = struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}{attempts: 6, initial: 10 * time.Millisecond, max: 250 * time.Millisecond}

// pragmas applied to every connection. Checkpoints rewrite deck_json after
// each slide, and WAL with synchronous=NORMAL keeps those writes durable
// across process crashes.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

func isLocked(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code()&0xff == sqliteBusy
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// exec runs a write statement and reports how many job rows it changed.
func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := lockRetry.initial
	for attempt := 1; ; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res.RowsAffected()
		}
		if !isLocked(err) || attempt == lockRetry.attempts {
			return 0, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		delay = min(delay*2, lockRetry.max)
	}
}

// Open creates the configured state directories and opens the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the job database at dbPath without touching the configured
// directories, creating the schema on first use.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
