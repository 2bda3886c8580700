package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/serverdb"
	"github.com/marcus/pratica/internal/store"
	pratsync "github.com/marcus/pratica/internal/sync"
	"github.com/marcus/pratica/internal/syncclient"
)

type testEnv struct {
	srv  *Server
	db   *serverdb.ServerDB
	http *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	db, err := serverdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := LoadConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(cfg, db)
	require.NoError(t, err)
	t.Cleanup(srv.rateLimiter.Stop)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &testEnv{srv: srv, db: db, http: hs}
}

// newUser creates a user and returns its id and a fresh API key.
func (e *testEnv) newUser(t *testing.T, email string) (string, string) {
	t.Helper()
	u, err := e.db.CreateUser(email)
	require.NoError(t, err)
	key, _, err := e.db.GenerateAPIKey(u.ID, "test", nil)
	require.NoError(t, err)
	return u.ID, key
}

func (e *testEnv) do(t *testing.T, method, path, key, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rdr)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	return er.Error.Code
}

func TestHealthAndMetricz(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, "GET", "/healthz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	env.newUser(t, "m@test.com")
	resp, body = env.do(t, "GET", "/metricz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap metriczResponse
	require.NoError(t, json.Unmarshal(body, &snap))
	require.NotNil(t, snap.Totals)
	assert.Equal(t, int64(1), snap.Totals.Users)
	assert.GreaterOrEqual(t, snap.Requests, int64(1))
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	_, key := env.newUser(t, "p@test.com")
	env.do(t, "POST", "/v1/attempts", key, `{"attempts":[{"id":"a1","qid":"1","value":0,"at":1}]}`)

	resp, body := env.do(t, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, "pratica_sync_requests_total")
	assert.Contains(t, text, `pratica_sync_rows_written_total{kind="attempt",op="upsert"} 1`)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, "GET", "/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeUnauthorized, errorCode(t, body))

	resp, _ = env.do(t, "GET", "/v1/attempts", "pk_live_nope", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	uid, key := env.newUser(t, "me@test.com")
	resp, body = env.do(t, "GET", "/v1/me", key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"user_id":"`+uid+`","email":"me@test.com"}`, string(body))
}

func TestUserIDMismatchForbidden(t *testing.T) {
	env := newTestEnv(t, nil)
	_, key := env.newUser(t, "a@test.com")
	other, _ := env.newUser(t, "b@test.com")

	resp, body := env.do(t, "GET", "/v1/attempts?user_id="+url.QueryEscape(other), key, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, ErrCodeForbidden, errorCode(t, body))
}

func TestPushAttemptsValidation(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxBatch = 2 })
	_, key := env.newUser(t, "v@test.com")

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing id", `{"attempts":[{"qid":"1","at":1}]}`, http.StatusBadRequest, ErrCodeInvalid},
		{"negative time", `{"attempts":[{"id":"a","qid":"1","at":-1}]}`, http.StatusBadRequest, ErrCodeInvalid},
		{"too many", `{"attempts":[{"id":"a","qid":"1"},{"id":"b","qid":"1"},{"id":"c","qid":"1"}]}`, http.StatusRequestEntityTooLarge, ErrCodeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, "POST", "/v1/attempts", key, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, body))
		})
	}
}

func TestListAttemptsPaging(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxPageSize = 2 })
	_, key := env.newUser(t, "pg@test.com")

	resp, body := env.do(t, "POST", "/v1/attempts", key,
		`{"attempts":[{"id":"a","qid":"1","at":3},{"id":"b","qid":"1","at":1},{"id":"c","qid":"2","at":2}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"count":3}`, string(body))

	var page struct {
		Attempts []attemptRow `json:"attempts"`
	}
	_, body = env.do(t, "GET", "/v1/attempts?limit=50", key, "")
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Attempts, 2, "limit clamps to max page size")
	assert.Equal(t, "b", page.Attempts[0].ID)

	_, body = env.do(t, "GET", "/v1/attempts?offset=2&limit=2", key, "")
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Attempts, 1)
	assert.Equal(t, "a", page.Attempts[0].ID)

	for _, q := range []string{"offset=-1", "limit=0", "limit=x"} {
		resp, _ := env.do(t, "GET", "/v1/attempts?"+q, key, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestCollectionsRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	_, key := env.newUser(t, "col@test.com")

	resp, body := env.do(t, "POST", "/v1/collections", key,
		`{"collections":[{"id":"crase","name":"Crase","qids":["1","2"]},{"id":"vazia","name":"Vazia","qids":[]}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = env.do(t, "DELETE", "/v1/collections?id=vazia&id=missing", key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"count":1}`, string(body))

	var list struct {
		Collections []collectionRow `json:"collections"`
	}
	_, body = env.do(t, "GET", "/v1/collections", key, "")
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Collections, 1)
	assert.Equal(t, []string{"1", "2"}, list.Collections[0].QuestionIDs)
	assert.NotZero(t, list.Collections[0].UpdatedAt)

	resp, _ = env.do(t, "POST", "/v1/collections", key, `{"collections":[{"id":"x","qids":[""]}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitLogsEvent(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.RateLimitPull = 1 })
	_, key := env.newUser(t, "rl@test.com")

	resp, _ := env.do(t, "GET", "/v1/collections", key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := env.do(t, "GET", "/v1/attempts", key, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, ErrCodeRateLimited, errorCode(t, body))

	n, err := env.db.CountRateLimitEvents("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Pushes have their own bucket.
	resp, _ = env.do(t, "POST", "/v1/collections", key, `{"collections":[]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTwoDevicesSyncThroughServer(t *testing.T) {
	env := newTestEnv(t, nil)
	uid, key := env.newUser(t, "sync@test.com")
	ctx := context.Background()

	newDevice := func() (*store.Store, *pratsync.Orchestrator) {
		local := store.New(nil, nil)
		client := syncclient.New(env.http.URL, key)
		o := pratsync.New(local, client, pratsync.AuthFunc(func() string { return uid }))
		t.Cleanup(o.Close)
		return local, o
	}
	laptop, laptopSync := newDevice()
	phone, phoneSync := newDevice()

	q := models.QuestionRef{ID: "7", Type: models.QuestionType("lacuna"), Category: "Crase"}
	att := laptop.RecordAttempt("", q, models.TextAnswer("ação"), true, 1000)
	colID := laptop.CreateCollection("Revisar")
	laptop.AddToCollection(colID, "7")

	res := laptopSync.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 1, res.Summary.PushedAttempts)
	assert.Equal(t, 1, res.Summary.PushedCollections)

	res = phoneSync.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	got, ok := phone.Attempt(att.ID)
	require.True(t, ok, "attempt pulled onto second device")
	assert.True(t, got.Value.Equal(models.TextAnswer("ação")))
	assert.Equal(t, "Crase", got.Category)
	col, ok := phone.Collection(colID)
	require.True(t, ok)
	assert.Equal(t, []string{"7"}, col.QuestionIDs)
	r, _ := phone.Rollup("7")
	assert.Equal(t, 1, r.Count)

	laptop.DeleteCollection(colID)
	res = laptopSync.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 1, res.Summary.DeletedCollections)
	remaining, err := env.db.ListCollections(uid)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSyncPushesMoreThanMaxBatch(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxBatch = 50 })
	uid, key := env.newUser(t, "bulk@test.com")
	ctx := context.Background()

	local := store.New(nil, nil)
	client := syncclient.New(env.http.URL, key)
	client.BatchSize = 50
	o := pratsync.New(local, client, pratsync.AuthFunc(func() string { return uid }))
	defer o.Close()

	for i := range 120 {
		local.RecordAttempt("", models.QuestionRef{ID: strconv.Itoa(i % 7)}, models.IndexAnswer(0), i%2 == 0, int64(1000+i))
	}
	var cols []string
	for i := range 60 {
		cols = append(cols, local.CreateCollection(fmt.Sprintf("c%d", i)))
	}

	res := o.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 120, res.Summary.PushedAttempts)
	assert.Equal(t, 60, res.Summary.PushedCollections)
	n, err := env.db.CountAttempts(uid)
	require.NoError(t, err)
	assert.Equal(t, 120, n)

	for _, id := range cols {
		local.DeleteCollection(id)
	}
	res = o.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 60, res.Summary.DeletedCollections)
	assert.Empty(t, local.Tombstones())
	remaining, err := env.db.ListCollections(uid)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSyncPullsPastServerPageCap(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxPageSize = 100 })
	uid, key := env.newUser(t, "pages@test.com")
	ctx := context.Background()

	newDevice := func() (*store.Store, *pratsync.Orchestrator) {
		local := store.New(nil, nil)
		o := pratsync.New(local, syncclient.New(env.http.URL, key), pratsync.AuthFunc(func() string { return uid }))
		t.Cleanup(o.Close)
		return local, o
	}
	a, aSync := newDevice()
	b, bSync := newDevice()

	for i := range 250 {
		a.RecordAttempt("", models.QuestionRef{ID: strconv.Itoa(i % 10)}, models.IndexAnswer(0), true, int64(1000+i))
	}
	res := aSync.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 250, res.Summary.PushedAttempts)

	res = bSync.SyncAll(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 250, res.Summary.RemoteAttempts)
	assert.Len(t, b.Attempts(), 250)
	r, _ := b.Rollup("3")
	assert.Equal(t, 25, r.Count)
}

func TestSyncWithRevokedKeyFails(t *testing.T) {
	env := newTestEnv(t, nil)
	uid, key := env.newUser(t, "rev@test.com")
	keys, err := env.db.ListAPIKeys(uid)
	require.NoError(t, err)
	require.NoError(t, env.db.RevokeAPIKey(keys[0].ID, uid))

	local := store.New(nil, nil)
	local.CreateCollection("X")
	o := pratsync.New(local, syncclient.New(env.http.URL, key), pratsync.AuthFunc(func() string { return uid }))
	defer o.Close()

	res := o.SyncAll(context.Background())
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "attempts")
}
