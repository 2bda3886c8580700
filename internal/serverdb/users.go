package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is an account that owns API keys and progress rows.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const userCols = "id, email, created_at"

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers email (trimmed and lowercased). Emails are unique.
func (db *ServerDB) CreateUser(email string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	id, err := generateID("u_")
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	u := &User{ID: id, Email: email, CreatedAt: time.Now().UTC()}
	if _, err := db.conn.Exec(`INSERT INTO users (`+userCols+`) VALUES (?, ?, ?)`, u.ID, u.Email, u.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert user %s: %w", email, err)
	}
	return u, nil
}

// userWhere returns the single user matching cond, or nil.
func (db *ServerDB) userWhere(cond string, arg any) (*User, error) {
	u, err := scanUser(db.conn.QueryRow(`SELECT `+userCols+` FROM users WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetUserByID returns the user or nil when there is none.
func (db *ServerDB) GetUserByID(id string) (*User, error) {
	u, err := db.userWhere("id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail looks the user up case-insensitively; nil when unknown.
func (db *ServerDB) GetUserByEmail(email string) (*User, error) {
	u, err := db.userWhere("LOWER(email) = ?", normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns every user, oldest first.
func (db *ServerDB) ListUsers() ([]*User, error) {
	rows, err := db.conn.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
