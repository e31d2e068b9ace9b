// Package sqlite persists the engine's durable operational state: the
// monthly quota counter and the provider call audit log. Flight data itself
// is never persisted here; that belongs to the surrounding system.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/pkg/logger"
)

// QuotaStore persists quota state and the call audit trail in SQLite.
type QuotaStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// NewQuotaStore creates a new SQLite quota store over an open database.
func NewQuotaStore(db *sql.DB, log *logger.Logger) (*QuotaStore, error) {
	store := &QuotaStore{
		db:     db,
		logger: log.Named("sqlite-quota"),
	}

	if err := store.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize quota storage: %w", err)
	}
	return store, nil
}

// initDB creates the tables and indexes.
func (s *QuotaStore) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS quota_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			month TEXT NOT NULL,
			used INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create quota_state table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS provider_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			flight_key TEXT NOT NULL,
			called_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create provider_calls table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_provider_calls_called_at ON provider_calls(called_at)`)
	if err != nil {
		return fmt.Errorf("failed to create called_at index: %w", err)
	}

	return nil
}

// Load implements quota.Store. Returns nil when no state has been saved.
func (s *QuotaStore) Load() (*quota.State, error) {
	row := s.db.QueryRow(`SELECT month, used FROM quota_state WHERE id = 1`)

	var state quota.State
	if err := row.Scan(&state.Month, &state.Used); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load quota state: %w", err)
	}
	return &state, nil
}

// Save implements quota.Store.
func (s *QuotaStore) Save(state *quota.State) error {
	_, err := s.db.Exec(
		`INSERT INTO quota_state (id, month, used) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET month = excluded.month, used = excluded.used`,
		state.Month,
		state.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to save quota state: %w", err)
	}
	return nil
}

// LogCall records one successful upstream call in the audit trail.
func (s *QuotaStore) LogCall(providerName, flightKey string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO provider_calls (provider, flight_key, called_at) VALUES (?, ?, ?)`,
		providerName,
		flightKey,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to log provider call: %w", err)
	}
	return nil
}

// CallsSince counts audit-log entries at or after the given time.
func (s *QuotaStore) CallsSince(t time.Time) (int, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*) FROM provider_calls WHERE called_at >= ?`,
		t.UTC().Format(time.RFC3339),
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count provider calls: %w", err)
	}
	return count, nil
}
