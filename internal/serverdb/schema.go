package serverdb

// ServerSchemaVersion is the version Open leaves a database at.
const ServerSchemaVersion = 2

const serverSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS api_keys (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    key_hash TEXT UNIQUE NOT NULL,
    key_prefix TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    expires_at DATETIME,
    last_used_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Attempts and collections are keyed per user: client ids are only unique
-- within one user's data (collection ids are slugs of the name).
CREATE TABLE IF NOT EXISTS attempts (
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    qid TEXT NOT NULL,
    tipo TEXT NOT NULL DEFAULT '',
    categoria TEXT NOT NULL DEFAULT '',
    dificuldade TEXT NOT NULL DEFAULT '',
    value TEXT NOT NULL DEFAULT 'null',
    correct INTEGER NOT NULL DEFAULT 0,
    at INTEGER NOT NULL,
    PRIMARY KEY (user_id, id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS collections (
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    qids TEXT NOT NULL DEFAULT '[]',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rate_limit_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key_id TEXT,
    ip TEXT NOT NULL,
    endpoint_class TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);
CREATE INDEX IF NOT EXISTS idx_attempts_user_at ON attempts(user_id, at);
CREATE INDEX IF NOT EXISTS idx_collections_user_updated ON collections(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_rate_limit_events_created ON rate_limit_events(created_at);
`

// serverMigrations run in order on every database whose recorded version is
// below theirs, fresh ones included, so each statement must be idempotent.
var serverMigrations = []struct {
	version int
	name    string
	sql     string
}{
	{2, "attempts by question", `CREATE INDEX IF NOT EXISTS idx_attempts_user_qid ON attempts(user_id, qid);`},
}
