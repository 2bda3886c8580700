package db

import "database/sql"

// SchemaVersion is the version a freshly initialized workspace ends at.
const SchemaVersion = 2

// baseSchema is version 1. Later changes go in migrations, never here.
const baseSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS schema_info (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// migration moves the schema from version-1 to version. up runs inside the
// transaction that records the new version.
type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

var migrations = []migration{
	{2, "kv write times", func(tx *sql.Tx) error {
		return addColumn(tx, "kv", "updated_at", "DATETIME")
	}},
}
