// Package exam runs a timed sequence of questions on top of the progress
// store: it opens a session, grades and records each answer, and closes
// the session when the questions run out or the time does.
package exam

import (
	"errors"
	"time"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/models"
)

// Sentinel errors returned by Answer.
var (
	ErrExpired  = errors.New("exam time is over")
	ErrFinished = errors.New("exam already finished")
)

// Recorder is the part of the store an exam writes to.
type Recorder interface {
	StartSession(filters *models.Filters, questionIDs []string) string
	RecordAttempt(sessionID string, q models.QuestionRef, value models.AnswerValue, correct bool, at int64) *models.Attempt
	FinishSession(id string, results []models.SessionResult) bool
}

// Outcome is the graded answer to one question.
type Outcome struct {
	Question bank.Question
	Value    models.AnswerValue
	Correct  bool
	Skipped  bool
}

// Summary is reported when the exam ends.
type Summary struct {
	SessionID string        `json:"sessionId"`
	Total     int           `json:"total"`
	Answered  int           `json:"answered"`
	Correct   int           `json:"correct"`
	Accuracy  float64       `json:"accuracy"`
	Elapsed   time.Duration `json:"elapsed"`
	TimedOut  bool          `json:"timedOut"`
}

// Exam is a single run. It is not safe for concurrent use apart from its Timer.
type Exam struct {
	rec       Recorder
	questions []bank.Question
	timer     *Timer
	now       func() time.Time
	sessionID string
	startedAt time.Time
	idx       int
	outcomes  []Outcome
	summary   *Summary
}

// Option configures an Exam.
type Option func(*Exam)

// WithClock overrides the wall clock used by the exam and its timer.
func WithClock(now func() time.Time) Option {
	return func(e *Exam) { e.now = now }
}

// Start opens a session for questions and starts the countdown.
func Start(rec Recorder, questions []bank.Question, filters models.Filters, d time.Duration, opts ...Option) *Exam {
	e := &Exam{rec: rec, questions: questions, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.timer = NewTimer(e.now)

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	f := filters.Sanitized()
	e.sessionID = rec.StartSession(&f, ids)
	e.startedAt = e.now()
	e.timer.Start(d)
	return e
}

// Timer exposes the countdown for display and pausing.
func (e *Exam) Timer() *Timer { return e.timer }

// SessionID is the store session the exam records into.
func (e *Exam) SessionID() string { return e.sessionID }

// Position returns the 1-based index of the current question and the total.
func (e *Exam) Position() (int, int) {
	return min(e.idx+1, len(e.questions)), len(e.questions)
}

// Current returns the question awaiting an answer.
func (e *Exam) Current() (bank.Question, bool) {
	if e.summary != nil || e.idx >= len(e.questions) {
		return bank.Question{}, false
	}
	return e.questions[e.idx], true
}

// Done reports whether no question is left or the exam was finished.
func (e *Exam) Done() bool {
	_, ok := e.Current()
	return !ok
}

// Answer grades value against the current question, records the attempt and
// moves on. After the time is up nothing is recorded.
func (e *Exam) Answer(value models.AnswerValue) (Outcome, error) {
	q, ok := e.Current()
	if !ok {
		return Outcome{}, ErrFinished
	}
	if e.timer.Expired() {
		return Outcome{}, ErrExpired
	}
	correct, err := bank.Check(q, value)
	if err != nil {
		return Outcome{}, err
	}
	v := value.Coerce(q.Type)
	e.rec.RecordAttempt(e.sessionID, q.Ref(), v, correct, e.now().UnixMilli())

	out := Outcome{Question: q, Value: v, Correct: correct}
	e.outcomes = append(e.outcomes, out)
	e.idx++
	return out, nil
}

// Skip moves past the current question without recording anything.
func (e *Exam) Skip() {
	if q, ok := e.Current(); ok {
		e.outcomes = append(e.outcomes, Outcome{Question: q, Skipped: true})
		e.idx++
	}
}

// Outcomes returns the graded answers so far, in order.
func (e *Exam) Outcomes() []Outcome {
	return append([]Outcome(nil), e.outcomes...)
}

// Finish stops the timer and closes the session. Calling it again returns
// the same summary.
func (e *Exam) Finish() Summary {
	if e.summary != nil {
		return *e.summary
	}
	timedOut := e.timer.Expired()
	e.timer.Stop()
	e.rec.FinishSession(e.sessionID, nil)

	s := Summary{
		SessionID: e.sessionID,
		Total:     len(e.questions),
		Elapsed:   e.now().Sub(e.startedAt),
		TimedOut:  timedOut,
	}
	for _, o := range e.outcomes {
		if o.Skipped {
			continue
		}
		s.Answered++
		if o.Correct {
			s.Correct++
		}
	}
	if s.Answered > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Answered)
	}
	e.summary = &s
	return s
}
