// Package sqlkv implements store.KV on SQLite or Postgres through database/sql.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/gofrs/flock"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // register sqlite as a database/sql driver
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "pgx"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	lockTimeout = 5 * time.Second
)

// ErrLocked is returned when another process holds the SQLite database.
var ErrLocked = errors.New("database is in use by another process")

// DB is a key/value table in a SQL database.
type DB struct {
	db     *sql.DB
	lock   *flock.Flock
	driver string
}

// DefaultPath returns the default SQLite database location.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "fidematch", "matches.db")
}

// Open connects to dsn using driver ("sqlite" or "pgx") and ensures the kv table exists.
// For SQLite, dsn is a file path; an exclusive file lock keeps other processes out.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case SQLite:
		return openSQLite(ctx, dsn)
	case Postgres, "postgres":
		return openPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func openSQLite(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	db, err := sql.Open(SQLite, path)
	if err != nil {
		_ = lock.Unlock() //nolint:errcheck // best effort on failure path
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas apply per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()    //nolint:errcheck // best effort on failure path
			_ = lock.Unlock() //nolint:errcheck // best effort on failure path
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &DB{db: db, lock: lock, driver: SQLite}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close() //nolint:errcheck // best effort on failure path
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres requires a DSN")
	}
	db, err := sql.Open(Postgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // best effort on failure path
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &DB{db: db, driver: Postgres}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close() //nolint:errcheck // best effort on failure path
		return nil, err
	}
	return s, nil
}

func (s *DB) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`
	if err := s.exec(ctx, schema); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Close closes the database and releases the file lock.
func (s *DB) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

// ph returns the n-th (1-based) bind placeholder for the driver.
func (s *DB) ph(n int) string {
	if s.driver == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Get implements store.KV.
func (s *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = "+s.ph(1), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements store.KV.
func (s *DB) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`INSERT INTO kv (key, value, updated_at) VALUES (%s, %s, %s)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.ph(1), s.ph(2), s.ph(3))
	if err := s.exec(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// RemoveAll implements store.KV.
func (s *DB) RemoveAll(ctx context.Context, match func(string) bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM kv")
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	var doomed []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close() //nolint:errcheck // scan error takes precedence
			return 0, fmt.Errorf("scan key: %w", err)
		}
		if match(key) {
			doomed = append(doomed, key)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM kv WHERE key = "+s.ph(1))
	if err != nil {
		return 0, fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	n := 0
	for _, key := range doomed {
		res, err := stmt.ExecContext(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("delete %q: %w", key, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n += int(affected)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *DB) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

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
	return retry.Do(op,
		retry.Context(ctx),
		retry.Attempts(busyRetryAttempts),
		retry.Delay(busyRetryInitialBackoff),
		retry.MaxDelay(busyRetryMaxBackoff),
		retry.RetryIf(isSQLiteBusy),
		retry.LastErrorOnly(true),
	)
}
