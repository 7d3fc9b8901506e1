package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store configuration constants.
const (
	// maxKeyLen is the key length limit, matching flash-backed stores.
	maxKeyLen = 15

	// maxNamespaceLen is the namespace length limit.
	maxNamespaceLen = 15

	// maxBlobBytes caps blob values.
	maxBlobBytes = 4000

	// defaultMaxEntries is the nominal capacity when none is configured.
	defaultMaxEntries = 1024

	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

// Value kind tags recorded alongside each entry. A getter whose kind does
// not match the stored tag behaves as if the key were absent.
const (
	kindBool   = "b"
	kindInt    = "i"
	kindFloat  = "f"
	kindString = "s"
	kindBytes  = "x"
)

// Config contains store configuration options.
// These map to the store section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// Namespace scopes every key written through this handle. Maximum 15
	// characters.
	Namespace string

	// ReadOnly opens the handle without write access.
	ReadOnly bool

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// MaxEntries is the nominal entry capacity reported by Stats().
	// Defaults to 1024 when zero.
	MaxEntries int
}

// Store wraps a sql.DB connection as a namespaced key-value store.
// It is the durable backend for the parameter registry.
//
// Thread Safety:
//   - All methods are safe for concurrent use; database/sql serializes
//     access to the single SQLite connection.
type Store struct {
	db  *sql.DB
	cfg Config
}

// Open creates a store handle with the specified configuration.
//
// It performs the following setup:
//  1. Validates the namespace
//  2. Creates the database directory if it doesn't exist
//  3. Opens the database file with WAL/busy-timeout pragmas
//  4. Creates the kv table if absent (writable handles only)
//  5. Verifies the connection with a ping
//
// Parameters:
//   - cfg: Store configuration
//
// Returns:
//   - *Store: Open store handle
//   - error: If validation, connection, or schema setup fails
func Open(cfg Config) (*Store, error) {
	if cfg.Namespace == "" || len(cfg.Namespace) > maxNamespaceLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, cfg.Namespace)
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}

	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:  sqlDB,
		cfg: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying store connection: %w", err)
	}

	if !cfg.ReadOnly {
		if err := s.ensureSchema(ctx); err != nil {
			sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, err
		}
	}

	// Set file permissions (owner read/write only).
	// Ignore error - file might not exist yet on first run.
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	return s, nil
}

// ensureSchema creates the kv table if it does not exist.
func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS kv (
    namespace TEXT NOT NULL,
    key       TEXT NOT NULL,
    kind      TEXT NOT NULL,
    value     BLOB,
    PRIMARY KEY (namespace, key)
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}
	return nil
}

// Close closes the store handle. Safe to call on an already-closed store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	s.db = nil
	return nil
}

// Reopen cycles the database handle. Used for corruption recovery around a
// namespace clear: close, reopen, clear, continue.
func (s *Store) Reopen() error {
	if err := s.Close(); err != nil {
		return err
	}
	reopened, err := Open(s.cfg)
	if err != nil {
		return err
	}
	s.db = reopened.db
	return nil
}

// Namespace returns the namespace this handle writes under.
func (s *Store) Namespace() string {
	return s.cfg.Namespace
}

// =============================================================================
// Getters
// =============================================================================

// get fetches the raw value for key if it exists with the expected kind.
func (s *Store) get(key, kind string) ([]byte, bool) {
	if s.db == nil || key == "" {
		return nil, false
	}

	var gotKind string
	var value []byte
	err := s.db.QueryRow(
		"SELECT kind, value FROM kv WHERE namespace = ? AND key = ?",
		s.cfg.Namespace, key,
	).Scan(&gotKind, &value)
	if err != nil || gotKind != kind {
		return nil, false
	}
	return value, true
}

// GetBool returns the stored boolean for key, or def when absent.
// The second return value reports whether the key was found.
func (s *Store) GetBool(key string, def bool) (bool, bool) {
	raw, found := s.get(key, kindBool)
	if !found {
		return def, false
	}
	return string(raw) == "1", true
}

// GetInt32 returns the stored int32 for key, or def when absent.
func (s *Store) GetInt32(key string, def int32) (int32, bool) {
	raw, found := s.get(key, kindInt)
	if !found {
		return def, false
	}
	v, err := strconv.ParseInt(string(raw), 10, 32)
	if err != nil {
		return def, false
	}
	return int32(v), true
}

// GetFloat32 returns the stored float32 for key, or def when absent.
func (s *Store) GetFloat32(key string, def float32) (float32, bool) {
	raw, found := s.get(key, kindFloat)
	if !found {
		return def, false
	}
	v, err := strconv.ParseFloat(string(raw), 32)
	if err != nil {
		return def, false
	}
	return float32(v), true
}

// GetString returns the stored string for key, or def when absent.
func (s *Store) GetString(key string, def string) (string, bool) {
	raw, found := s.get(key, kindString)
	if !found {
		return def, false
	}
	return string(raw), true
}

// GetBytes returns a copy of the stored blob for key.
func (s *Store) GetBytes(key string) ([]byte, bool) {
	raw, found := s.get(key, kindBytes)
	if !found {
		return nil, false
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true
}

// GetBytesLength returns the stored blob length for key, or 0 when absent.
func (s *Store) GetBytesLength(key string) int {
	raw, found := s.get(key, kindBytes)
	if !found {
		return 0
	}
	return len(raw)
}

// =============================================================================
// Putters
// =============================================================================

// put upserts a value under key with the given kind tag.
func (s *Store) put(key, kind string, value []byte) error {
	if s.db == nil {
		return ErrClosed
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > maxKeyLen {
		return fmt.Errorf("%w: %q", ErrKeyTooLong, key)
	}

	_, err := s.db.Exec(
		`INSERT INTO kv (namespace, key, kind, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
		s.cfg.Namespace, key, kind, value,
	)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// PutBool stores a boolean under key.
func (s *Store) PutBool(key string, v bool) error {
	raw := "0"
	if v {
		raw = "1"
	}
	return s.put(key, kindBool, []byte(raw))
}

// PutInt32 stores an int32 under key.
func (s *Store) PutInt32(key string, v int32) error {
	return s.put(key, kindInt, []byte(strconv.FormatInt(int64(v), 10)))
}

// PutFloat32 stores a float32 under key. The encoding round-trips exactly.
func (s *Store) PutFloat32(key string, v float32) error {
	return s.put(key, kindFloat, []byte(strconv.FormatFloat(float64(v), 'g', -1, 32)))
}

// PutString stores a string under key.
func (s *Store) PutString(key string, v string) error {
	return s.put(key, kindString, []byte(v))
}

// PutBytes stores a blob under key. Returns ErrValueTooLarge when the blob
// exceeds the size cap.
func (s *Store) PutBytes(key string, v []byte) error {
	if len(v) > maxBlobBytes {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrValueTooLarge, len(v), maxBlobBytes)
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return s.put(key, kindBytes, buf)
}

// =============================================================================
// Maintenance
// =============================================================================

// Remove deletes key from the namespace. Removing an absent key is not an
// error.
func (s *Store) Remove(key string) error {
	if s.db == nil {
		return ErrClosed
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	if key == "" {
		return ErrInvalidKey
	}

	if _, err := s.db.Exec(
		"DELETE FROM kv WHERE namespace = ? AND key = ?",
		s.cfg.Namespace, key,
	); err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

// Clear deletes every key in the namespace. Other namespaces in the same
// database file are untouched.
func (s *Store) Clear() error {
	if s.db == nil {
		return ErrClosed
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}

	if _, err := s.db.Exec(
		"DELETE FROM kv WHERE namespace = ?",
		s.cfg.Namespace,
	); err != nil {
		return fmt.Errorf("clearing namespace %q: %w", s.cfg.Namespace, err)
	}
	return nil
}

// Stats returns entry usage for the namespace against the configured
// nominal capacity.
func (s *Store) Stats() (used, free, total int, err error) {
	if s.db == nil {
		return 0, 0, 0, ErrClosed
	}

	err = s.db.QueryRow(
		"SELECT COUNT(*) FROM kv WHERE namespace = ?",
		s.cfg.Namespace,
	).Scan(&used)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reading store stats: %w", err)
	}

	free = s.cfg.MaxEntries - used
	if free < 0 {
		free = 0
	}
	return used, free, s.cfg.MaxEntries, nil
}

// HealthCheck verifies the store is accessible and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}
