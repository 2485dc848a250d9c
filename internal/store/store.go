package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/santelocale/healthlog/internal/live"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is the version of schema.sql. Any other on-disk version
// triggers a destructive migration.
//
// 1 - health_logs (sealed payload) and food_items
const SchemaVersion = 1

// Table names, also used as live-query invalidation keys.
const (
	metaTable  = "store_meta"
	LogsTable  = "health_logs"
	FoodsTable = "food_items"
)

const metaSQL = `
CREATE TABLE IF NOT EXISTS store_meta (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
)`

// Store is an open encrypted database. Obtain one through a Provider;
// Open is exported for tests and tools that manage the lifecycle
// themselves.
type Store struct {
	db      *sql.DB
	path    string
	tracker *live.Tracker
	logger  *slog.Logger
	closed  atomic.Bool

	pollCancel context.CancelFunc
	pollDone   chan struct{}

	logs  *LogDAO
	foods *FoodDAO
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	logger     *slog.Logger
	version    int
	changePoll time.Duration
}

// DefaultChangePoll is how often an open store checks for commits made
// through other connections to the same file.
const DefaultChangePoll = 500 * time.Millisecond

// WithOpenLogger sets the logger (default slog.Default()).
func WithOpenLogger(l *slog.Logger) OpenOption {
	return func(c *openConfig) { c.logger = l }
}

// WithOpenChangePoll sets how often commits by other connections (another
// process, another Store on the same file) are looked for. Zero disables
// the check; live queries then only see writes made through this Store.
func WithOpenChangePoll(d time.Duration) OpenOption {
	return func(c *openConfig) { c.changePoll = d }
}

// withSchemaVersion overrides SchemaVersion. Tests use it to simulate an
// upgrade.
func withSchemaVersion(v int) OpenOption {
	return func(c *openConfig) { c.version = v }
}

// Open creates or opens the store at path with passphrase.
//
// A wrong passphrase returns ErrWrongPassphrase and leaves the file
// untouched. A file written before encryption returns ErrLegacyStore.
func Open(ctx context.Context, path string, passphrase []byte, opts ...OpenOption) (*Store, error) {
	cfg := openConfig{logger: slog.Default(), version: SchemaVersion, changePoll: DefaultChangePoll}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	logSealer, err := unlock(ctx, db, passphrase)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db, cfg.version, cfg.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		tracker: live.NewTracker(live.WithLogger(cfg.logger)),
		logger:  cfg.logger,
	}
	s.logs = &LogDAO{store: s, sealer: logSealer}
	s.foods = &FoodDAO{store: s}

	if cfg.changePoll > 0 {
		// Baseline taken before Open returns so no later commit is missed.
		version, err := dataVersion(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		pollCtx, cancel := context.WithCancel(context.Background())
		s.pollCancel = cancel
		s.pollDone = make(chan struct{})
		go s.pollExternalWrites(pollCtx, cfg.changePoll, version)
	}
	return s, nil
}

// pollExternalWrites notifies every table when PRAGMA data_version moves.
// It only moves for commits made by other connections.
func (s *Store) pollExternalWrites(ctx context.Context, every time.Duration, last int64) {
	defer close(s.pollDone)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		v, err := dataVersion(ctx, s.db)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("data_version check failed", "path", s.path, "error", err)
			}
			continue
		}
		if v != last {
			last = v
			s.logger.Debug("external commit detected", "path", s.path)
			s.tracker.Notify(LogsTable, FoodsTable)
		}
	}
}

func dataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}

// Logs returns the health-log data access object.
func (s *Store) Logs() *LogDAO {
	return s.logs
}

// Foods returns the food-guide data access object.
func (s *Store) Foods() *FoodDAO {
	return s.foods
}

// Path returns the main database file path.
func (s *Store) Path() string {
	return s.path
}

// Tracker returns the invalidation tracker feeding live queries.
func (s *Store) Tracker() *live.Tracker {
	return s.tracker
}

// Close closes the database connection. Open live queries end with
// ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.pollCancel != nil {
		s.pollCancel()
		<-s.pollDone
	}
	err := s.db.Close()
	// Wake observers; their refresh hits checkOpen and fails.
	s.tracker.Notify(LogsTable, FoodsTable)
	return err
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// unlock verifies the passphrase against store_meta, initialising the
// salt and key check on a fresh file, and returns the health-log sealer.
func unlock(ctx context.Context, db *sql.DB, passphrase []byte) (*sealer, error) {
	var legacy int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != ?
	`, metaTable).Scan(&legacy)
	if err != nil {
		return nil, fmt.Errorf("inspect schema: %w", err)
	}
	var hasMeta int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, metaTable).Scan(&hasMeta)
	if err != nil {
		return nil, fmt.Errorf("inspect schema: %w", err)
	}
	if hasMeta == 0 && legacy > 0 {
		return nil, ErrLegacyStore
	}

	if _, err := db.ExecContext(ctx, metaSQL); err != nil {
		return nil, fmt.Errorf("create store_meta: %w", err)
	}

	salt, check, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	if salt == nil {
		return initMeta(ctx, db, passphrase)
	}

	checker, err := deriveSealer(passphrase, salt, infoKeyCheck)
	if err != nil {
		return nil, err
	}
	if _, err := checker.open(check, nil); err != nil {
		return nil, ErrWrongPassphrase
	}
	return deriveSealer(passphrase, salt, infoHealthLogs)
}

func readMeta(ctx context.Context, db *sql.DB) (salt, check []byte, err error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM store_meta WHERE key IN ('kdf_salt', 'key_check')`)
	if err != nil {
		return nil, nil, fmt.Errorf("read store_meta: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, nil, fmt.Errorf("scan store_meta: %w", err)
		}
		switch key {
		case "kdf_salt":
			salt = value
		case "key_check":
			check = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate store_meta: %w", err)
	}
	if (salt == nil) != (check == nil) {
		return nil, nil, fmt.Errorf("%w: store_meta is incomplete", ErrWrongPassphrase)
	}
	return salt, check, nil
}

func initMeta(ctx context.Context, db *sql.DB, passphrase []byte) (*sealer, error) {
	salt := make([]byte, saltSize)
	if _, err := randRead(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	checker, err := deriveSealer(passphrase, salt, infoKeyCheck)
	if err != nil {
		return nil, err
	}
	check, err := checker.seal(keyCheckCanary, nil)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("init store_meta: begin tx: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string][]byte{"kdf_salt": salt, "key_check": check} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO store_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return nil, fmt.Errorf("init store_meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("init store_meta: commit: %w", err)
	}
	return deriveSealer(passphrase, salt, infoHealthLogs)
}

// migrate recreates the data tables when the on-disk version differs.
func migrate(ctx context.Context, db *sql.DB, version int, logger *slog.Logger) error {
	var onDisk int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&onDisk); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if onDisk == version {
		// Tables may still be missing if a previous run died mid-create.
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
		return nil
	}
	if onDisk != 0 {
		logger.Warn("schema version changed, recreating tables", "from", onDisk, "to", version)
	}

	tables, err := dataTables(ctx, db)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", t)); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

// dataTables lists every user table except store_meta.
func dataTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != ?
	`, metaTable)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
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
