package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS          = 5000
	defaultMaxOpenConns    = 4
	defaultMaxIdleConns    = 4
	defaultConnMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "STOWAGE_DB_MAX_OPEN_CONNS"
	maxIdleConnsEnvKey    = "STOWAGE_DB_MAX_IDLE_CONNS"
	connMaxLifetimeEnvKey = "STOWAGE_DB_CONN_MAX_LIFETIME"

	// dbTimeLayout is fixed width so that text ordering matches time ordering.
	dbTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store wraps the SQLite database holding file and job records.
type Store struct {
	db   *sql.DB
	path string
}

// Info summarizes store contents for the info endpoint.
type Info struct {
	SchemaVersion int            `json:"schema_version"`
	TotalFiles    int            `json:"total_files"`
	JobCounts     map[string]int `json:"job_counts"`
}

// Open opens the SQLite database and applies pending migrations.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	configureDB(db)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connections.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// StoreInfo reports schema version, file count, and job counts by status.
func (s *Store) StoreInfo(ctx context.Context) (*Info, error) {
	version, err := currentVersion(s.db)
	if err != nil {
		return nil, err
	}
	files, err := s.CountFiles(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.JobCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{SchemaVersion: version, TotalFiles: files, JobCounts: counts}, nil
}

func configureDB(db *sql.DB) {
	maxOpen := intFromEnv(maxOpenConnsEnvKey, defaultMaxOpenConns)
	maxIdle := intFromEnv(maxIdleConnsEnvKey, defaultMaxIdleConns)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(durationFromEnv(connMaxLifetimeEnvKey, defaultConnMaxLifetime))
}

// sqliteDSN applies pragmas on every pooled connection and takes the write
// lock at BEGIN so claim transactions never need a lock upgrade.
func sqliteDSN(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("db path is required")
	}
	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "synchronous(NORMAL)")
	query.Add("_pragma", "foreign_keys(1)")
	query.Set("_txlock", "immediate")
	u := url.URL{Scheme: "file", Path: path, RawQuery: query.Encode()}
	return u.String(), nil
}

func intFromEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	return currentVersion(s.db)
}
