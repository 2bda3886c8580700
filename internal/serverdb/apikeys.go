package serverdb

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	apiKeyPrefix = "pk_live_"
	keyLength    = 32
	shownPrefix  = 8 // secret chars kept in clear to tell keys apart
)

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// APIKey is a stored key. Only its SHA-256 is kept, never the secret.
type APIKey struct {
	ID         string
	UserID     string
	KeyPrefix  string
	Name       string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

const keyCols = "id, user_id, key_prefix, name, expires_at, last_used_at, created_at"

func (k *APIKey) fields() []any {
	return []any{&k.ID, &k.UserID, &k.KeyPrefix, &k.Name, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt}
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// randomBase62 draws n characters uniformly, rejecting bytes that would bias
// the modulo.
func randomBase62(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	limit := byte(256 - 256%len(base62))
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b < limit && len(out) < n {
				out = append(out, base62[int(b)%len(base62)])
			}
		}
	}
	return string(out), nil
}

// GenerateAPIKey issues a key for userID. The plaintext is returned once and
// cannot be recovered later.
func (db *ServerDB) GenerateAPIKey(userID, name string, expiresAt *time.Time) (string, *APIKey, error) {
	owner, err := db.GetUserByID(userID)
	if err != nil {
		return "", nil, err
	}
	if owner == nil {
		return "", nil, fmt.Errorf("user not found: %s", userID)
	}

	id, err := generateID("ak_")
	if err != nil {
		return "", nil, fmt.Errorf("generate api key id: %w", err)
	}
	secret, err := randomBase62(keyLength)
	if err != nil {
		return "", nil, fmt.Errorf("generate api key secret: %w", err)
	}
	plaintext := apiKeyPrefix + secret

	k := &APIKey{
		ID:        id,
		UserID:    userID,
		KeyPrefix: secret[:shownPrefix],
		Name:      name,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := db.conn.Exec(
		`INSERT INTO api_keys (id, user_id, key_hash, key_prefix, name, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.UserID, hashKey(plaintext), k.KeyPrefix, k.Name, k.ExpiresAt, k.CreatedAt,
	); err != nil {
		return "", nil, fmt.Errorf("insert api key: %w", err)
	}
	return plaintext, k, nil
}

// VerifyAPIKey resolves a plaintext key to its record and owner and stamps
// last use. Unknown and expired keys return nils without an error.
func (db *ServerDB) VerifyAPIKey(plaintext string) (*APIKey, *User, error) {
	k, u := &APIKey{}, &User{}
	dest := append(k.fields(), &u.ID, &u.Email, &u.CreatedAt)
	err := db.conn.QueryRow(`
		SELECT ak.id, ak.user_id, ak.key_prefix, ak.name, ak.expires_at, ak.last_used_at, ak.created_at,
		       u.id, u.email, u.created_at
		FROM api_keys ak JOIN users u ON u.id = ak.user_id
		WHERE ak.key_hash = ?`, hashKey(plaintext)).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("verify api key: %w", err)
	}

	now := time.Now().UTC()
	if k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
		slog.Debug("expired api key used", "key_id", k.ID)
		return nil, nil, nil
	}
	if _, err := db.conn.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now, k.ID); err != nil {
		slog.Warn("stamp api key use", "key_id", k.ID, "err", err)
	}
	k.LastUsedAt = &now
	return k, u, nil
}

// RevokeAPIKey deletes keyID when userID owns it.
func (db *ServerDB) RevokeAPIKey(keyID, userID string) error {
	res, err := db.conn.Exec(`DELETE FROM api_keys WHERE id = ? AND user_id = ?`, keyID, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("api key %s not found for user %s", keyID, userID)
	}
	return nil
}

// ListAPIKeys returns userID's keys, oldest first.
func (db *ServerDB) ListAPIKeys(userID string) ([]*APIKey, error) {
	rows, err := db.conn.Query(`SELECT `+keyCols+` FROM api_keys WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		k := &APIKey{}
		if err := rows.Scan(k.fields()...); err != nil {
			return nil, fmt.Errorf("list api keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
