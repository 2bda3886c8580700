package serverdb

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// ServerDB is the sync server's store: users, API keys and per-user
// progress rows.
type ServerDB struct {
	conn *sql.DB
}

// connPragmas apply to every connection New wraps. Failures other than the
// busy timeout are tolerated since not every driver build supports them.
var connPragmas = []struct {
	sql      string
	required bool
}{
	{"PRAGMA busy_timeout=5000", true},
	{"PRAGMA foreign_keys=ON", false},
	{"PRAGMA synchronous=NORMAL", false},
}

// Open opens (creating when needed) the database at dbPath with the pure-Go
// driver in WAL mode. ":memory:" gives a private in-memory database.
func Open(dbPath string) (*ServerDB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	db, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an open SQLite connection from any driver, creating the schema
// and applying migrations.
func New(conn *sql.DB) (*ServerDB, error) {
	// single connection: a :memory: database exists per connection
	conn.SetMaxOpenConns(1)
	for _, p := range connPragmas {
		if _, err := conn.Exec(p.sql); err != nil && p.required {
			return nil, fmt.Errorf("%s: %w", p.sql, err)
		}
	}
	if _, err := conn.Exec(serverSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	db := &ServerDB{conn: conn}
	if _, err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Ping checks the database connection is alive.
func (db *ServerDB) Ping() error {
	return db.conn.Ping()
}

// Close checkpoints the WAL and closes the database connection.
func (db *ServerDB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// RunMigrations applies pending steps, each in its own transaction with
// the version bump, and returns how many ran.
func (db *ServerDB) RunMigrations() (int, error) {
	ran := 0
	for _, m := range serverMigrations {
		if m.version <= db.SchemaVersion() {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return ran, err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return ran, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(m.version)); err != nil {
			tx.Rollback()
			return ran, err
		}
		if err := tx.Commit(); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

// SchemaVersion returns the version recorded in schema_info, 0 when none is.
func (db *ServerDB) SchemaVersion() int {
	var raw string
	if err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&raw); err != nil {
		return 0
	}
	v, _ := strconv.Atoi(raw)
	return v
}

// Totals counts rows across users for the metrics endpoint.
type Totals struct {
	Users       int64 `json:"users"`
	Attempts    int64 `json:"attempts"`
	Collections int64 `json:"collections"`
}

// CountTotals returns row counts of the main tables.
func (db *ServerDB) CountTotals() (Totals, error) {
	var t Totals
	err := db.conn.QueryRow(`SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM attempts),
		(SELECT COUNT(*) FROM collections)`).Scan(&t.Users, &t.Attempts, &t.Collections)
	if err != nil {
		return Totals{}, fmt.Errorf("count totals: %w", err)
	}
	return t, nil
}

// generateID creates a prefixed ID with 8 random hex chars.
func generateID(prefix string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s", prefix, hex.EncodeToString(b)), nil
}
