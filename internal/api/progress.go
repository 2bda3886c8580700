package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/marcus/pratica/internal/serverdb"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type attemptRow struct {
	ID         string          `json:"id" validate:"required,max=128"`
	QuestionID string          `json:"qid" validate:"required,max=128"`
	Type       string          `json:"tipo,omitempty" validate:"max=64"`
	Category   string          `json:"categoria,omitempty" validate:"max=256"`
	Difficulty string          `json:"dificuldade,omitempty" validate:"max=64"`
	Value      json.RawMessage `json:"value"`
	Correct    bool            `json:"correct"`
	At         int64           `json:"at" validate:"gte=0"`
}

type collectionRow struct {
	ID          string   `json:"id" validate:"required,max=128"`
	Name        string   `json:"name" validate:"max=256"`
	QuestionIDs []string `json:"qids" validate:"dive,required,max=128"`
	UpdatedAt   int64    `json:"updated_at,omitempty"`
}

type pushAttemptsRequest struct {
	Attempts []attemptRow `json:"attempts" validate:"dive"`
}

type pushCollectionsRequest struct {
	Collections []collectionRow `json:"collections" validate:"dive"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := principalOf(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"user_id": user.UserID, "email": user.Email})
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	user := principalOf(r.Context())
	offset, limit, err := s.pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	recs, err := s.store.ListAttempts(user.UserID, offset, limit)
	if err != nil {
		reqLogger(r.Context()).Error("list attempts", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list attempts")
		return
	}
	s.metrics.RecordPullRequest()

	rows := make([]attemptRow, 0, len(recs))
	for _, a := range recs {
		rows = append(rows, attemptRow{
			ID:         a.ID,
			QuestionID: a.QuestionID,
			Type:       a.Type,
			Category:   a.Category,
			Difficulty: a.Difficulty,
			Value:      a.Value,
			Correct:    a.Correct,
			At:         a.At,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": rows})
}

func (s *Server) handlePushAttempts(w http.ResponseWriter, r *http.Request) {
	user := principalOf(r.Context())
	var req pushAttemptsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Attempts) > s.config.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, fmt.Sprintf("at most %d attempts per request", s.config.MaxBatch))
		return
	}

	recs := make([]serverdb.AttemptRecord, 0, len(req.Attempts))
	for _, a := range req.Attempts {
		recs = append(recs, serverdb.AttemptRecord{
			ID:         a.ID,
			QuestionID: a.QuestionID,
			Type:       a.Type,
			Category:   a.Category,
			Difficulty: a.Difficulty,
			Value:      a.Value,
			Correct:    a.Correct,
			At:         a.At,
		})
	}
	n, err := s.store.UpsertAttempts(user.UserID, recs)
	if err != nil {
		reqLogger(r.Context()).Error("upsert attempts", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store attempts")
		return
	}
	s.metrics.RecordAttemptsPushed(n)
	reqLogger(r.Context()).Debug("attempts pushed", "count", n)
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	user := principalOf(r.Context())
	recs, err := s.store.ListCollections(user.UserID)
	if err != nil {
		reqLogger(r.Context()).Error("list collections", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list collections")
		return
	}
	s.metrics.RecordPullRequest()

	rows := make([]collectionRow, 0, len(recs))
	for _, c := range recs {
		rows = append(rows, collectionRow{ID: c.ID, Name: c.Name, QuestionIDs: c.QuestionIDs, UpdatedAt: c.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": rows})
}

func (s *Server) handlePushCollections(w http.ResponseWriter, r *http.Request) {
	user := principalOf(r.Context())
	var req pushCollectionsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Collections) > s.config.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, fmt.Sprintf("at most %d collections per request", s.config.MaxBatch))
		return
	}

	recs := make([]serverdb.CollectionRecord, 0, len(req.Collections))
	for _, c := range req.Collections {
		recs = append(recs, serverdb.CollectionRecord{ID: c.ID, Name: c.Name, QuestionIDs: c.QuestionIDs})
	}
	n, err := s.store.UpsertCollections(user.UserID, recs)
	if err != nil {
		reqLogger(r.Context()).Error("upsert collections", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store collections")
		return
	}
	s.metrics.RecordCollectionsPushed(n)
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (s *Server) handleDeleteCollections(w http.ResponseWriter, r *http.Request) {
	user := principalOf(r.Context())
	ids := r.URL.Query()["id"]
	if len(ids) > s.config.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, fmt.Sprintf("at most %d ids per request", s.config.MaxBatch))
		return
	}
	for _, id := range ids {
		if err := validate.Var(id, "required,max=128"); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalid, "invalid collection id")
			return
		}
	}

	n, err := s.store.DeleteCollections(user.UserID, ids)
	if err != nil {
		reqLogger(r.Context()).Error("delete collections", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete collections")
		return
	}
	s.metrics.RecordCollectionsDeleted(n)
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// decodeBody reads and validates a JSON body, writing the error response
// itself when it returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalid, fmt.Sprintf("%s failed %s", verrs[0].Namespace(), verrs[0].Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, ErrCodeInvalid, err.Error())
		return false
	}
	return true
}

// pageParams reads offset and limit. A missing or oversized limit is
// clamped to MaxPageSize.
func (s *Server) pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = s.config.MaxPageSize
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
		limit = min(limit, s.config.MaxPageSize)
	}
	return offset, limit, nil
}
