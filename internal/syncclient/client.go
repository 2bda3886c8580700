package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/marcus/pratica/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// DefaultBatchSize is the most rows sent in one write request. It stays
// under the server's default MaxBatch.
const DefaultBatchSize = 1000

// Client is an HTTP client for the pratica-sync server. It implements the
// remote store used by the sync orchestrator.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// BatchSize caps rows per write; larger writes are split. Zero means
	// DefaultBatchSize.
	BatchSize int
}

// New creates a new sync client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		BatchSize: DefaultBatchSize,
	}
}

func (c *Client) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// inBatches calls write for consecutive chunks of rows and sums the counts.
// A failed chunk stops the loop; the count of chunks already written is
// returned with the error.
func inBatches[T any](c *Client, rows []T, write func([]T) (int, error)) (int, error) {
	total := 0
	for chunk := range slices.Chunk(rows, c.batchSize()) {
		n, err := write(chunk)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// --- Wire types (mirrors internal/api, independently defined) ---

// AttemptRow is an attempt as stored remotely. Sessions are not synced.
type AttemptRow struct {
	ID         string              `json:"id"`
	QuestionID string              `json:"qid"`
	Type       models.QuestionType `json:"tipo,omitempty"`
	Category   string              `json:"categoria,omitempty"`
	Difficulty string              `json:"dificuldade,omitempty"`
	Value      models.AnswerValue  `json:"value"`
	Correct    bool                `json:"correct"`
	At         int64               `json:"at"`
}

// CollectionRow is a collection as stored remotely.
type CollectionRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"qids"`
	UpdatedAt   int64    `json:"updated_at,omitempty"`
}

// AttemptsPage is the response from GET /v1/attempts.
type AttemptsPage struct {
	Attempts []AttemptRow `json:"attempts"`
}

// CollectionsList is the response from GET /v1/collections.
type CollectionsList struct {
	Collections []CollectionRow `json:"collections"`
}

// CountResponse reports how many rows a write touched.
type CountResponse struct {
	Count int `json:"count"`
}

// MeResponse is the response from GET /v1/me.
type MeResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// AttemptToRow converts a local attempt to its remote shape.
func AttemptToRow(a models.Attempt) AttemptRow {
	return AttemptRow{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		Type:       a.Type,
		Category:   a.Category,
		Difficulty: a.Difficulty,
		Value:      a.Value,
		Correct:    a.Correct,
		At:         a.At,
	}
}

// Attempt converts a remote row to a local attempt without a session link.
func (r AttemptRow) Attempt() models.Attempt {
	return models.Attempt{
		ID:         r.ID,
		QuestionID: r.QuestionID,
		Type:       r.Type,
		Category:   r.Category,
		Difficulty: r.Difficulty,
		Value:      r.Value,
		Correct:    r.Correct,
		At:         r.At,
	}
}

// Collection converts a remote row to a local collection.
func (r CollectionRow) Collection() models.Collection {
	name := r.Name
	if name == "" {
		name = models.DefaultCollectionName
	}
	qids := r.QuestionIDs
	if qids == nil {
		qids = []string{}
	}
	return models.Collection{ID: r.ID, Name: name, QuestionIDs: qids}
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the user the API key belongs to.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var resp MeResponse
	if err := c.do(ctx, "GET", "/v1/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchAttempts reads one page of the user's attempts ordered by time.
func (c *Client) FetchAttempts(ctx context.Context, userID string, offset, limit int) ([]models.Attempt, error) {
	params := userParams(userID)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	var resp AttemptsPage
	if err := c.do(ctx, "GET", "/v1/attempts?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Attempt, 0, len(resp.Attempts))
	for _, r := range resp.Attempts {
		out = append(out, r.Attempt())
	}
	return out, nil
}

// UpsertAttempts writes attempts keyed by id, BatchSize rows per request.
func (c *Client) UpsertAttempts(ctx context.Context, userID string, attempts []models.Attempt) (int, error) {
	if len(attempts) == 0 {
		return 0, nil
	}
	rows := make([]AttemptRow, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, AttemptToRow(a))
	}
	path := "/v1/attempts?" + userParams(userID).Encode()
	return inBatches(c, rows, func(chunk []AttemptRow) (int, error) {
		var resp CountResponse
		if err := c.do(ctx, "POST", path, map[string]any{"attempts": chunk}, &resp); err != nil {
			return 0, err
		}
		return resp.Count, nil
	})
}

// FetchCollections reads all of the user's collections.
func (c *Client) FetchCollections(ctx context.Context, userID string) ([]models.Collection, error) {
	var resp CollectionsList
	if err := c.do(ctx, "GET", "/v1/collections?"+userParams(userID).Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Collection, 0, len(resp.Collections))
	for _, r := range resp.Collections {
		out = append(out, r.Collection())
	}
	return out, nil
}

// UpsertCollections writes collections keyed by id.
func (c *Client) UpsertCollections(ctx context.Context, userID string, cols []models.Collection) (int, error) {
	if len(cols) == 0 {
		return 0, nil
	}
	rows := make([]CollectionRow, 0, len(cols))
	for _, col := range cols {
		rows = append(rows, CollectionRow{ID: col.ID, Name: col.Name, QuestionIDs: col.QuestionIDs})
	}
	path := "/v1/collections?" + userParams(userID).Encode()
	return inBatches(c, rows, func(chunk []CollectionRow) (int, error) {
		var resp CountResponse
		if err := c.do(ctx, "POST", path, map[string]any{"collections": chunk}, &resp); err != nil {
			return 0, err
		}
		return resp.Count, nil
	})
}

// DeleteCollections removes the user's collections with the given ids.
// Ids that do not exist remotely are not an error.
func (c *Client) DeleteCollections(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return inBatches(c, ids, func(chunk []string) (int, error) {
		params := userParams(userID)
		for _, id := range chunk {
			params.Add("id", id)
		}
		var resp CountResponse
		if err := c.do(ctx, "DELETE", "/v1/collections?"+params.Encode(), nil, &resp); err != nil {
			return 0, err
		}
		return resp.Count, nil
	})
}

func userParams(userID string) url.Values {
	params := url.Values{}
	if userID != "" {
		params.Set("user_id", userID)
	}
	return params
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// parseAPIError reads either {"error":{"code",...}} or a bare {"code",...}.
func parseAPIError(body []byte) (apiError, bool) {
	var wrapped struct {
		Error apiError `json:"error"`
	}
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error.Code != "" {
		return wrapped.Error, true
	}
	var flat apiError
	if json.Unmarshal(body, &flat) == nil && flat.Code != "" {
		return flat, true
	}
	return apiError{}, false
}

func statusError(status int, body []byte) error {
	apiErr, parsed := parseAPIError(body)

	var sentinel error
	switch status {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	}

	switch {
	case sentinel != nil && parsed:
		return fmt.Errorf("%w: %s", sentinel, apiErr.Message)
	case sentinel != nil:
		return sentinel
	case parsed:
		return &apiErr
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
}
