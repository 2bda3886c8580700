package serverdb

import (
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func newTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUser(t *testing.T, db *ServerDB, email string) *User {
	t.Helper()
	u, err := db.CreateUser(email)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// --- User tests ---

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	u := newTestUser(t, db, "Alice@Example.COM")
	if u.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %s", u.Email)
	}
	if !strings.HasPrefix(u.ID, "u_") {
		t.Errorf("unexpected id prefix: %s", u.ID)
	}

	found, err := db.GetUserByEmail("ALICE@example.com")
	if err != nil || found == nil || found.ID != u.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", found, err)
	}
	if missing, err := db.GetUserByID("u_nope"); err != nil || missing != nil {
		t.Errorf("GetUserByID(missing) = %+v, %v", missing, err)
	}
}

func TestCreateUserRejectsDuplicateAndEmpty(t *testing.T) {
	db := newTestDB(t)
	newTestUser(t, db, "dup@test.com")
	if _, err := db.CreateUser("dup@test.com"); err == nil {
		t.Error("expected error for duplicate email")
	}
	if _, err := db.CreateUser("  "); err == nil {
		t.Error("expected error for empty email")
	}
}

// --- API key tests ---

func TestAPIKeyLifecycle(t *testing.T) {
	db := newTestDB(t)
	u := newTestUser(t, db, "k@test.com")

	plain, ak, err := db.GenerateAPIKey(u.ID, "cli", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(plain, apiKeyPrefix) || len(plain) != len(apiKeyPrefix)+keyLength {
		t.Errorf("unexpected key shape: %s", plain)
	}

	gotKey, gotUser, err := db.VerifyAPIKey(plain)
	if err != nil || gotKey == nil || gotUser.ID != u.ID || gotKey.LastUsedAt == nil {
		t.Fatalf("verify = %+v %+v %v", gotKey, gotUser, err)
	}
	if k, _, _ := db.VerifyAPIKey(plain + "x"); k != nil {
		t.Error("wrong key verified")
	}

	keys, _ := db.ListAPIKeys(u.ID)
	if len(keys) != 1 || keys[0].ID != ak.ID {
		t.Errorf("list = %+v", keys)
	}
	if err := db.RevokeAPIKey(ak.ID, "u_other"); err == nil {
		t.Error("revoke by another user should fail")
	}
	if err := db.RevokeAPIKey(ak.ID, u.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if k, _, _ := db.VerifyAPIKey(plain); k != nil {
		t.Error("revoked key still verifies")
	}
}

func TestExpiredAPIKey(t *testing.T) {
	db := newTestDB(t)
	u := newTestUser(t, db, "e@test.com")
	past := time.Now().UTC().Add(-time.Hour)
	plain, _, err := db.GenerateAPIKey(u.ID, "", &past)
	if err != nil {
		t.Fatal(err)
	}
	if k, _, err := db.VerifyAPIKey(plain); k != nil || err != nil {
		t.Errorf("expired key = %+v, %v", k, err)
	}
}

func TestGenerateAPIKeyUnknownUser(t *testing.T) {
	db := newTestDB(t)
	if _, _, err := db.GenerateAPIKey("u_missing", "", nil); err == nil {
		t.Error("expected error for unknown user")
	}
}

// --- Progress tests ---

func TestAttemptsUpsertAndPaging(t *testing.T) {
	db := newTestDB(t)
	u := newTestUser(t, db, "a@test.com")

	in := []AttemptRecord{
		{ID: "a3", QuestionID: "1", Type: "lacuna", Value: json.RawMessage(`"ação"`), At: 30},
		{ID: "a1", QuestionID: "1", Type: "multipla_escolha", Value: json.RawMessage(`2`), Correct: true, At: 10},
		{ID: "a2", QuestionID: "2", Type: "verdadeiro_falso", At: 20},
	}
	if n, err := db.UpsertAttempts(u.ID, in); err != nil || n != 3 {
		t.Fatalf("upsert = %d, %v", n, err)
	}

	page, err := db.ListAttempts(u.ID, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "a1" || page[1].ID != "a2" {
		t.Fatalf("first page = %+v", page)
	}
	if string(page[0].Value) != "2" || !page[0].Correct {
		t.Errorf("a1 = %+v", page[0])
	}
	if string(page[1].Value) != "null" {
		t.Errorf("missing value stored as %s", page[1].Value)
	}

	rest, _ := db.ListAttempts(u.ID, 2, 2)
	if len(rest) != 1 || rest[0].ID != "a3" {
		t.Fatalf("second page = %+v", rest)
	}

	// Same id again updates in place.
	db.UpsertAttempts(u.ID, []AttemptRecord{{ID: "a3", QuestionID: "1", Value: json.RawMessage(`"acao"`), At: 5}})
	if n, _ := db.CountAttempts(u.ID); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	all, _ := db.ListAttempts(u.ID, 0, 10)
	if all[0].ID != "a3" || string(all[0].Value) != `"acao"` {
		t.Errorf("updated attempt = %+v", all[0])
	}
}

func TestAttemptsAreScopedPerUser(t *testing.T) {
	db := newTestDB(t)
	alice := newTestUser(t, db, "alice@test.com")
	bob := newTestUser(t, db, "bob@test.com")

	db.UpsertAttempts(alice.ID, []AttemptRecord{{ID: "same", QuestionID: "1", At: 1}})
	db.UpsertAttempts(bob.ID, []AttemptRecord{{ID: "same", QuestionID: "9", At: 2}})

	a, _ := db.ListAttempts(alice.ID, 0, 10)
	b, _ := db.ListAttempts(bob.ID, 0, 10)
	if len(a) != 1 || a[0].QuestionID != "1" || len(b) != 1 || b[0].QuestionID != "9" {
		t.Errorf("alice = %+v bob = %+v", a, b)
	}
}

func TestCollectionsUpsertListDelete(t *testing.T) {
	db := newTestDB(t)
	u := newTestUser(t, db, "c@test.com")
	other := newTestUser(t, db, "o@test.com")

	n, err := db.UpsertCollections(u.ID, []CollectionRecord{
		{ID: "crase", Name: "Crase", QuestionIDs: []string{"1", "2"}},
		{ID: "vazia", Name: "Vazia"},
	})
	if err != nil || n != 2 {
		t.Fatalf("upsert = %d, %v", n, err)
	}
	db.UpsertCollections(other.ID, []CollectionRecord{{ID: "crase", Name: "Other"}})

	cols, err := db.ListCollections(u.ID)
	if err != nil || len(cols) != 2 {
		t.Fatalf("list = %+v, %v", cols, err)
	}
	for _, c := range cols {
		if c.QuestionIDs == nil || c.UpdatedAt == 0 {
			t.Errorf("collection not normalized: %+v", c)
		}
	}

	deleted, err := db.DeleteCollections(u.ID, []string{"crase", "missing"})
	if err != nil || deleted != 1 {
		t.Fatalf("delete = %d, %v", deleted, err)
	}
	if cols, _ := db.ListCollections(u.ID); len(cols) != 1 || cols[0].ID != "vazia" {
		t.Errorf("after delete = %+v", cols)
	}
	if cols, _ := db.ListCollections(other.ID); len(cols) != 1 || cols[0].Name != "Other" {
		t.Errorf("other user's collection touched: %+v", cols)
	}
}

func TestRateLimitEvents(t *testing.T) {
	db := newTestDB(t)
	if err := db.InsertRateLimitEvent("ak_1", "1.2.3.4", "push"); err != nil {
		t.Fatal(err)
	}
	db.InsertRateLimitEvent("", "1.2.3.4", "auth")

	if n, _ := db.CountRateLimitEvents(""); n != 2 {
		t.Errorf("total = %d", n)
	}
	if n, _ := db.CountRateLimitEvents("ak_1"); n != 1 {
		t.Errorf("for key = %d", n)
	}
	if n, _ := db.CleanupRateLimitEvents(time.Hour); n != 0 {
		t.Errorf("fresh events cleaned: %d", n)
	}
	if n, _ := db.CleanupRateLimitEvents(-time.Hour); n != 2 {
		t.Errorf("cleanup = %d, want 2", n)
	}
}

func TestCountTotals(t *testing.T) {
	db := newTestDB(t)
	u := newTestUser(t, db, "t@test.com")
	db.UpsertAttempts(u.ID, []AttemptRecord{{ID: "a", QuestionID: "1", At: 1}})
	db.UpsertCollections(u.ID, []CollectionRecord{{ID: "c", Name: "C"}})

	got, err := db.CountTotals()
	if err != nil {
		t.Fatal(err)
	}
	if got != (Totals{Users: 1, Attempts: 1, Collections: 1}) {
		t.Errorf("totals = %+v", got)
	}
}

func TestSchemaVersionOnFreshDB(t *testing.T) {
	db := newTestDB(t)
	if v := db.SchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("version = %d, want %d", v, ServerSchemaVersion)
	}
	if n, err := db.RunMigrations(); err != nil || n != 0 {
		t.Errorf("rerun migrations = %d, %v", n, err)
	}
	var name string
	err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_attempts_user_qid'`).Scan(&name)
	if err != nil {
		t.Errorf("migration index missing: %v", err)
	}
}

func TestRunMigrationsFromVersionOne(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.conn.Exec(`DROP INDEX idx_attempts_user_qid`); err != nil {
		t.Fatal(err)
	}
	db.conn.Exec(`UPDATE schema_info SET value = '1' WHERE key = 'version'`)
	if n, err := db.RunMigrations(); err != nil || n != 1 {
		t.Fatalf("migrations = %d, %v", n, err)
	}
	if v := db.SchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("version = %d", v)
	}
}

func TestNewWithCgoDriver(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db, err := New(conn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u := newTestUser(t, db, "cgo@test.com")
	if _, err := db.UpsertCollections(u.ID, []CollectionRecord{{ID: "x", Name: "X", QuestionIDs: []string{"7"}}}); err != nil {
		t.Fatal(err)
	}
	cols, err := db.ListCollections(u.ID)
	if err != nil || len(cols) != 1 || cols[0].QuestionIDs[0] != "7" {
		t.Errorf("list = %+v, %v", cols, err)
	}
}
