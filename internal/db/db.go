package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dataDir = ".pratica"
	dbFile  = ".pratica/store.db"
)

// ErrNotInitialized is returned by Open when the workspace has no database yet.
var ErrNotInitialized = errors.New("database not found: run 'pratica init' first")

// DB is a workspace database: a key/value table of JSON blobs guarded by a
// cross-process write lock.
type DB struct {
	conn    *sql.DB
	baseDir string
}

// Path returns the database file path for a workspace directory.
func Path(baseDir string) string {
	return filepath.Join(baseDir, dbFile)
}

// Exists reports whether the workspace already has a database.
func Exists(baseDir string) bool {
	_, err := os.Stat(Path(baseDir))
	return err == nil
}

// Open opens an existing workspace database and migrates it.
func Open(baseDir string) (*DB, error) {
	if !Exists(baseDir) {
		return nil, ErrNotInitialized
	}
	return open(baseDir)
}

// Initialize creates the workspace directory and database when missing.
func Initialize(baseDir string) (*DB, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, dataDir), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(baseDir)
}

// pragmas run on open, in order. busy_timeout matches the write lock timeout.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=500",
	"PRAGMA synchronous=NORMAL",
}

func open(baseDir string) (*DB, error) {
	conn, err := sql.Open("sqlite", Path(baseDir))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", Path(baseDir), err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	db := &DB{conn: conn, baseDir: baseDir}

	if _, err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// BaseDir returns the base directory for the database
func (db *DB) BaseDir() string {
	return db.baseDir
}

// withWriteLock executes fn while holding an exclusive write lock.
// This prevents concurrent writes from multiple processes.
func (db *DB) withWriteLock(fn func() error) error {
	locker := newWriteLocker(db.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// Get returns the value stored under key. ok is false when the key is absent.
func (db *DB) Get(key string) (value []byte, ok bool, err error) {
	err = db.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (db *DB) Put(key string, value []byte) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(key string) error {
	return db.withWriteLock(func() error {
		if _, err := db.conn.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Keys lists stored keys in lexical order.
func (db *DB) Keys() ([]string, error) {
	rows, err := db.conn.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UpdatedAt returns the last write time of key, or zero time if absent.
func (db *DB) UpdatedAt(key string) (time.Time, error) {
	var ts sql.NullTime
	err := db.conn.QueryRow(`SELECT updated_at FROM kv WHERE key = ?`, key).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// Load implements the store backend: a missing key yields nil data and no error.
func (db *DB) Load(key string) ([]byte, error) {
	v, _, err := db.Get(key)
	return v, err
}

// Save implements the store backend.
func (db *DB) Save(key string, data []byte) error {
	return db.Put(key, data)
}
