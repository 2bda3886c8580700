package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// addColumn is a no-op when the column is already there, so a migration
// interrupted after the ALTER can be rerun.
func addColumn(tx *sql.Tx, table, column, decl string) error {
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// GetSchemaVersion returns the recorded schema version, or 0 for a database
// that predates versioning.
func (db *DB) GetSchemaVersion() (int, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		// schema_info missing: nothing has been created yet
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// RunMigrations brings the schema to SchemaVersion and returns how many
// steps ran.
func (db *DB) RunMigrations() (int, error) {
	if v, _ := db.GetSchemaVersion(); v >= SchemaVersion {
		return 0, nil
	}
	var ran int
	err := db.withWriteLock(func() error {
		var err error
		ran, err = db.migrate()
		return err
	})
	return ran, err
}

func (db *DB) migrate() (int, error) {
	if _, err := db.conn.Exec(baseSchema); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}
	current, err := db.GetSchemaVersion()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	current = max(current, 1)

	ran := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.step(m); err != nil {
			return ran, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		ran++
	}
	return ran, nil
}

func (db *DB) step(m migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.up(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(m.version)); err != nil {
		return err
	}
	return tx.Commit()
}
