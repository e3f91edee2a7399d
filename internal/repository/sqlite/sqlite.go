package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// MeterSchema holds the tables of the meter service.
const MeterSchema = `
	CREATE TABLE IF NOT EXISTS meter_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id TEXT NOT NULL,
		reading_value TEXT NOT NULL,
		reading_type TEXT NOT NULL CHECK (reading_type IN ('current', 'previous')),
		reading_date DATETIME NOT NULL,
		original_image_path TEXT NOT NULL DEFAULT '',
		processed_image_path TEXT NOT NULL DEFAULT '',
		UNIQUE (image_id, reading_type)
	);

	CREATE TABLE IF NOT EXISTS consumption_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		current_reading_id INTEGER NOT NULL,
		previous_reading_id INTEGER NOT NULL,
		consumption_value REAL NOT NULL,
		calculation_date DATETIME NOT NULL,
		FOREIGN KEY (current_reading_id) REFERENCES meter_readings(id),
		FOREIGN KEY (previous_reading_id) REFERENCES meter_readings(id)
	);

	CREATE INDEX IF NOT EXISTS idx_meter_readings_date ON meter_readings(reading_date);
	CREATE INDEX IF NOT EXISTS idx_consumption_current ON consumption_records(current_reading_id);
`

// AuthSchema holds the tables of the auth service.
const AuthSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		mobile_number TEXT NOT NULL UNIQUE,
		service_number TEXT UNIQUE,
		hashed_password TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id, expires_at);
`

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens the database at dbPath and applies the given schemas.
func New(dbPath string, schemas ...string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(schemas); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate(schemas []string) error {
	for _, schema := range schemas {
		if _, err := db.conn.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}

func constraintCode(err error) sqlite3.ErrNoExtended {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return sqliteErr.ExtendedCode
	}
	return 0
}
