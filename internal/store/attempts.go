package store

import (
	"sort"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// RecordAttempt appends an attempt for q and updates its rollup. When
// sessionID names a known session, the session's result for the question is
// upserted too. at <= 0 means now. It returns nil if q has no id.
func (s *Store) RecordAttempt(sessionID string, q models.QuestionRef, value models.AnswerValue, correct bool, at int64) *models.Attempt {
	if q.ID == "" {
		return nil
	}
	if at <= 0 {
		at = s.now()
	}

	a := models.Attempt{
		ID:         s.newID("a"),
		SessionID:  sessionID,
		QuestionID: q.ID,
		Type:       q.Type,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Value:      value.Coerce(q.Type),
		Correct:    correct,
		At:         at,
	}

	s.update(events.ReasonAttempts, false, func(d *Document) bool {
		d.Attempts = append(d.Attempts, a)

		// An attempt older than the question's last one changes the streak
		// history, so the rollup is replayed rather than extended.
		if r, ok := d.PerQuestion[a.QuestionID]; ok && a.At < r.LastAt {
			d.PerQuestion[a.QuestionID] = replayQuestion(d.Attempts, a.QuestionID)
		} else {
			r.Apply(a.Correct, a.At)
			d.PerQuestion[a.QuestionID] = r
		}

		if sess := findSession(d, sessionID); sess != nil {
			res := models.SessionResult{
				QuestionID: a.QuestionID,
				Value:      a.Value,
				Correct:    a.Correct,
				Type:       a.Type,
				At:         a.At,
			}
			replaced := false
			for i := range sess.Results {
				if sess.Results[i].QuestionID == a.QuestionID {
					sess.Results[i] = res
					replaced = true
					break
				}
			}
			if !replaced {
				sess.Results = append(sess.Results, res)
			}
		}
		return true
	})
	return &a
}

// Attempts returns every attempt in insertion order.
func (s *Store) Attempts() []models.Attempt {
	var out []models.Attempt
	s.view(func(d *Document) { out = append([]models.Attempt{}, d.Attempts...) })
	return out
}

// Attempt returns the attempt with the given id.
func (s *Store) Attempt(id string) (models.Attempt, bool) {
	var (
		out models.Attempt
		ok  bool
	)
	s.view(func(d *Document) {
		for _, a := range d.Attempts {
			if a.ID == id {
				out, ok = a, true
				return
			}
		}
	})
	return out, ok
}

// AttemptsFor returns the attempts for one question, oldest first.
func (s *Store) AttemptsFor(qid string) []models.Attempt {
	var out []models.Attempt
	s.view(func(d *Document) {
		for _, a := range d.Attempts {
			if a.QuestionID == qid {
				out = append(out, a)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}
