package serverdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AttemptRecord is one stored attempt of a user.
type AttemptRecord struct {
	ID         string
	QuestionID string
	Type       string
	Category   string
	Difficulty string
	Value      json.RawMessage
	Correct    bool
	At         int64
}

// CollectionRecord is one stored collection of a user.
type CollectionRecord struct {
	ID          string
	Name        string
	QuestionIDs []string
	UpdatedAt   int64
}

// ListAttempts returns a page of the user's attempts ordered by time, then id.
func (db *ServerDB) ListAttempts(userID string, offset, limit int) ([]AttemptRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, qid, tipo, categoria, dificuldade, value, correct, at
		FROM attempts WHERE user_id = ?
		ORDER BY at ASC, id ASC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	out := []AttemptRecord{}
	for rows.Next() {
		var a AttemptRecord
		var value string
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Type, &a.Category, &a.Difficulty, &value, &a.Correct, &a.At); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Value = json.RawMessage(value)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: iterate: %w", err)
	}
	return out, nil
}

// UpsertAttempts writes attempts keyed by (user, id) in one transaction.
func (db *ServerDB) UpsertAttempts(userID string, attempts []AttemptRecord) (int, error) {
	if len(attempts) == 0 {
		return 0, nil
	}
	err := db.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO attempts (user_id, id, qid, tipo, categoria, dificuldade, value, correct, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, id) DO UPDATE SET
				qid = excluded.qid, tipo = excluded.tipo, categoria = excluded.categoria,
				dificuldade = excluded.dificuldade, value = excluded.value,
				correct = excluded.correct, at = excluded.at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range attempts {
			value := "null"
			if len(a.Value) > 0 {
				value = string(a.Value)
			}
			if _, err := stmt.Exec(userID, a.ID, a.QuestionID, a.Type, a.Category, a.Difficulty, value, a.Correct, a.At); err != nil {
				return fmt.Errorf("attempt %s: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert attempts: %w", err)
	}
	return len(attempts), nil
}

// CountAttempts returns how many attempts the user has stored.
func (db *ServerDB) CountAttempts(userID string) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM attempts WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// ListCollections returns all of the user's collections, oldest update first.
func (db *ServerDB) ListCollections(userID string) ([]CollectionRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, qids, updated_at FROM collections
		WHERE user_id = ? ORDER BY updated_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := []CollectionRecord{}
	for rows.Next() {
		var c CollectionRecord
		var qids string
		if err := rows.Scan(&c.ID, &c.Name, &qids, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		if err := json.Unmarshal([]byte(qids), &c.QuestionIDs); err != nil {
			return nil, fmt.Errorf("collection %s qids: %w", c.ID, err)
		}
		if c.QuestionIDs == nil {
			c.QuestionIDs = []string{}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list collections: iterate: %w", err)
	}
	return out, nil
}

// UpsertCollections writes collections keyed by (user, id), stamping updated_at.
func (db *ServerDB) UpsertCollections(userID string, cols []CollectionRecord) (int, error) {
	if len(cols) == 0 {
		return 0, nil
	}
	now := time.Now().UnixMilli()
	err := db.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO collections (user_id, id, name, qids, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, id) DO UPDATE SET
				name = excluded.name, qids = excluded.qids, updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range cols {
			qids := c.QuestionIDs
			if qids == nil {
				qids = []string{}
			}
			data, err := json.Marshal(qids)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(userID, c.ID, c.Name, string(data), now); err != nil {
				return fmt.Errorf("collection %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert collections: %w", err)
	}
	return len(cols), nil
}

// DeleteCollections removes the user's collections with the given ids and
// returns how many existed.
func (db *ServerDB) DeleteCollections(userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := db.conn.Exec(`DELETE FROM collections WHERE user_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete collections: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (db *ServerDB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
