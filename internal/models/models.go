package models

import (
	"time"
)

// QuestionType identifies how a question is answered
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multipla_escolha"
	TypeFillBlank      QuestionType = "lacuna"
	TypeTrueFalse      QuestionType = "verdadeiro_falso"
)

// DefaultUserKey is the sync metadata key used when nobody is logged in
const DefaultUserKey = "guest"

// DefaultCollectionName is used for collections created or imported without a name
const DefaultCollectionName = "Coleção"

// FilterAll means "no filter" for category and difficulty
const FilterAll = "all"

// QuestionRef is the part of a question an attempt needs to know about
type QuestionRef struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"tipo"`
	Category   string       `json:"categoria,omitempty"`
	Difficulty string       `json:"dificuldade,omitempty"`
}

// Attempt is one recorded answer submission
type Attempt struct {
	ID         string       `json:"id" validate:"required"`
	SessionID  string       `json:"sessionId,omitempty"`
	QuestionID string       `json:"qid" validate:"required"`
	Type       QuestionType `json:"tipo"`
	Category   string       `json:"categoria,omitempty"`
	Difficulty string       `json:"dificuldade,omitempty"`
	Value      AnswerValue  `json:"value"`
	Correct    bool         `json:"correct"`
	At         int64        `json:"at" validate:"gte=0"`
}

// Filters is the snapshot of list filters a session was started with
type Filters struct {
	Text       string `json:"q"`
	Category   string `json:"cat"`
	Difficulty string `json:"dif"`
}

// Sanitized returns a copy with empty category/difficulty mapped to "all"
func (f Filters) Sanitized() Filters {
	if f.Category == "" {
		f.Category = FilterAll
	}
	if f.Difficulty == "" {
		f.Difficulty = FilterAll
	}
	return f
}

// SessionResult is the per-question outcome stored on a session
type SessionResult struct {
	QuestionID string       `json:"qid"`
	Value      AnswerValue  `json:"selected"`
	Correct    bool         `json:"correct"`
	Type       QuestionType `json:"tipo,omitempty"`
	At         int64        `json:"at,omitempty"`
}

// Session is one practice run over an ordered list of questions
type Session struct {
	ID          string          `json:"id" validate:"required"`
	StartedAt   int64           `json:"startedAt" validate:"gte=0"`
	FinishedAt  *int64          `json:"finishedAt"`
	Filters     *Filters        `json:"filters"`
	QuestionIDs []string        `json:"questionIds"`
	Results     []SessionResult `json:"results"`
}

// Finished reports whether the session has an end timestamp
func (s *Session) Finished() bool {
	return s.FinishedAt != nil
}

// LastTouched returns the newest timestamp known for the session
func (s *Session) LastTouched() int64 {
	if s.FinishedAt != nil && *s.FinishedAt > s.StartedAt {
		return *s.FinishedAt
	}
	return s.StartedAt
}

// Rollup aggregates attempts for a single question
type Rollup struct {
	Count       int   `json:"count"`
	Correct     int   `json:"correct"`
	LastAt      int64 `json:"lastAt"`
	LastCorrect bool  `json:"lastCorrect"`
	Streak      int   `json:"streak"`
	BestStreak  int   `json:"bestStreak"`
}

// Apply folds one attempt outcome into the rollup
func (r *Rollup) Apply(correct bool, at int64) {
	r.Count++
	if correct {
		r.Correct++
		r.Streak++
		if r.Streak > r.BestStreak {
			r.BestStreak = r.Streak
		}
	} else {
		r.Streak = 0
	}
	r.LastAt = at
	r.LastCorrect = correct
}

// Collection is a named, user-curated group of question ids
type Collection struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"qids"`
}

// Has reports whether the collection contains the question id
func (c *Collection) Has(qid string) bool {
	for _, id := range c.QuestionIDs {
		if id == qid {
			return true
		}
	}
	return false
}

// Tombstone records a deletion that merges must honor
type Tombstone struct {
	ID string `json:"id" validate:"required"`
	At int64  `json:"at" validate:"gte=0"`
}

// SyncMeta is per-user sync bookkeeping
type SyncMeta struct {
	LastPullAt                 int64 `json:"lastPullAt,omitempty"`
	LastPullCount              int   `json:"lastPullCount"`
	LastPushAt                 int64 `json:"lastPushAt,omitempty"`
	LastPushCount              int   `json:"lastPushCount"`
	LastCollectionsPullCount   int   `json:"lastCollectionsPullCount"`
	LastCollectionsPushCount   int   `json:"lastCollectionsPushCount"`
	LastCollectionsDeleteCount int   `json:"lastCollectionsDeleteCount"`
	LastSyncAt                 int64 `json:"lastSyncAt,omitempty"`
	LastSyncOK                 bool  `json:"lastSyncOk"`
}

// Tally counts attempts and correct answers for a breakdown bucket
type Tally struct {
	Attempts int `json:"attempts"`
	Correct  int `json:"correct"`
}

// Accuracy returns correct/attempts, 0 when empty
func (t Tally) Accuracy() float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Attempts)
}

// Totals holds the headline numbers of the stats view
type Totals struct {
	Attempts            int     `json:"attempts"`
	Correct             int     `json:"correct"`
	Accuracy            float64 `json:"accuracy"`
	UniqueQuestionCount int     `json:"uniqueQ"`
	LastAttemptAt       *int64  `json:"lastAt"`
}

// Stats is the read-side aggregation over the store
type Stats struct {
	Totals         Totals            `json:"totals"`
	RecentAttempts []Attempt         `json:"lastAttempts"`
	Sessions       []Session         `json:"sessions"`
	PerQuestion    map[string]Rollup `json:"perQuestion"`
	ByCategory     map[string]Tally  `json:"byCategory"`
	ByDifficulty   map[string]Tally  `json:"byDifficulty"`
}

// Config is the per-workspace preferences file
type Config struct {
	Filters      Filters `json:"filters"`
	ExamCount    int     `json:"exam_count,omitempty"`
	ExamDuration string  `json:"exam_duration,omitempty"`
	QuestionBank string  `json:"question_bank,omitempty"`
	PageSize     int     `json:"page_size,omitempty"`
}

// NowMillis returns the current time as epoch milliseconds
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// TimeOf converts epoch milliseconds to a time.Time
func TimeOf(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// IsValidQuestionType checks the type against the supported set
func IsValidQuestionType(t QuestionType) bool {
	switch t {
	case TypeMultipleChoice, TypeFillBlank, TypeTrueFalse:
		return true
	}
	return false
}

// QuestionTypeLabel returns a human label for a question type
func QuestionTypeLabel(t QuestionType) string {
	switch t {
	case TypeMultipleChoice:
		return "Múltipla escolha"
	case TypeFillBlank:
		return "Lacuna"
	case TypeTrueFalse:
		return "Verdadeiro ou Falso"
	default:
		return "Exercício"
	}
}
