package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Defaults mirror what the host application tolerates on a shared library file.
const (
	DefaultMaxConns    = 6
	DefaultBusyTimeout = 12 * time.Second
)

// TimestampLayout is the host schema's created_at/updated_at text format.
const TimestampLayout = "2006-01-02 15:04:05.000 -07:00"

// Querier is satisfied by both *sql.DB and *sql.Tx, so allocators and
// managers can run either standalone or inside a write transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options tunes the connection pool. Zero values select the defaults.
type Options struct {
	MaxConns    int
	BusyTimeout time.Duration
}

// Store is an opened, authenticated handle on an encrypted library file.
// It is safe for concurrent use; every pooled connection is keyed on creation.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing library database and authenticates it with
// passphrase. The file must already exist; the schema belongs to the host
// application and is never created here.
//
// Each pooled connection is configured with:
//   - PRAGMA key, issued before anything reads the file
//   - WAL journal and NORMAL synchronous mode
//   - an immediate transaction lock, so BEGIN takes the write lock
//   - a busy timeout for cross-process lock contention
func Open(ctx context.Context, path, passphrase string, opts Options) (*Store, error) {
	if path == "" {
		return nil, NewError(ErrCodeConfiguration, "open store", fmt.Errorf("database path is empty"))
	}
	if passphrase == "" {
		return nil, NewError(ErrCodeConfiguration, "open store", fmt.Errorf("passphrase is empty"))
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}

	db := sql.OpenDB(&keyedConnector{
		dsn: dataSourceName(path, opts.BusyTimeout),
		drv: &sqlite3.SQLiteDriver{ConnectHook: keyHook(passphrase)},
	})
	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MaxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Classify("open store", err)
	}

	return &Store{db: db, path: path}, nil
}

// dataSourceName builds the file: URI for path. The path is percent-escaped
// so that '?', '#' and '%' in a file name stay part of the name.
func dataSourceName(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("mode", "rw")
	params.Set("_txlock", "immediate")
	params.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + params.Encode()
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying pool for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// WithTx runs fn inside one write transaction. Because connections use an
// immediate lock, the transaction holds the database write lock from BEGIN
// until commit, so reads inside fn cannot go stale before fn's writes land.
// Any error from fn rolls back every statement fn issued.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return Classify("commit transaction", err)
	}
	return nil
}

// CheckpointResult reports the outcome of a WAL checkpoint.
type CheckpointResult struct {
	LogFrames          int
	CheckpointedFrames int
	PageSize           int // bytes per frame
}

// CheckpointedBytes is the amount of log data moved into the main file.
func (r CheckpointResult) CheckpointedBytes() int64 {
	return int64(r.CheckpointedFrames) * int64(r.PageSize)
}

// Checkpoint flushes the write-ahead log into the main database file and
// truncates the log. It is a durability control only: a failed checkpoint
// leaves committed writes intact and is not retried.
func (s *Store) Checkpoint(ctx context.Context) (CheckpointResult, error) {
	var busy int
	var res CheckpointResult
	err := s.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").
		Scan(&busy, &res.LogFrames, &res.CheckpointedFrames)
	if err != nil {
		return res, Classify("checkpoint", err)
	}
	if busy != 0 {
		return res, NewError(ErrCodeUnavailable, "checkpoint",
			fmt.Errorf("blocked by concurrent readers or writers"))
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&res.PageSize); err != nil {
		return res, Classify("checkpoint", err)
	}
	return res, nil
}

// Timestamp formats t in the host schema's timestamp layout, in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// keyedConnector hands database/sql connections that have already been
// authenticated by the driver's connect hook.
type keyedConnector struct {
	dsn string
	drv *sqlite3.SQLiteDriver
}

func (c *keyedConnector) Connect(context.Context) (driver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c *keyedConnector) Driver() driver.Driver {
	return c.drv
}

// keyHook returns a connect hook that keys a fresh connection, proves the
// key by reading the schema, then applies the pragmas that touch the file.
// Against a SQLite build without SQLCipher the key pragma is ignored.
func keyHook(passphrase string) func(*sqlite3.SQLiteConn) error {
	statements := []string{
		"PRAGMA key = " + quoteLiteral(passphrase),
		"SELECT count(*) FROM sqlite_master",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	return func(conn *sqlite3.SQLiteConn) error {
		for _, stmt := range statements {
			if _, err := conn.Exec(stmt, nil); err != nil {
				if strings.HasPrefix(stmt, "PRAGMA key") {
					return fmt.Errorf("apply key: %w", err)
				}
				return fmt.Errorf("execute %q: %w", stmt, err)
			}
		}
		return nil
	}
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
