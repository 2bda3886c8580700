package store

import (
	"sort"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// StartSession records a new in-progress session and returns its id.
// filters may be nil when the run was not started from the filtered list.
func (s *Store) StartSession(filters *models.Filters, questionIDs []string) string {
	sess := models.Session{
		ID:          s.newID("s"),
		StartedAt:   s.now(),
		QuestionIDs: append([]string{}, questionIDs...),
		Results:     []models.SessionResult{},
	}
	if filters != nil {
		f := filters.Sanitized()
		sess.Filters = &f
	}

	s.update(events.ReasonSessions, false, func(d *Document) bool {
		d.Sessions = append(d.Sessions, sess)
		return true
	})
	return sess.ID
}

// FinishSession sets the end timestamp (once) and, when results is non-nil,
// replaces the session's results. Results without a timestamp get the
// current time. It returns false for an unknown session.
func (s *Store) FinishSession(id string, results []models.SessionResult) bool {
	now := s.now()
	return s.update(events.ReasonSessions, false, func(d *Document) bool {
		sess := findSession(d, id)
		if sess == nil {
			return false
		}
		if sess.FinishedAt == nil {
			sess.FinishedAt = &now
		}
		if results != nil {
			out := make([]models.SessionResult, 0, len(results))
			for _, r := range results {
				if r.At == 0 {
					r.At = now
				}
				out = append(out, r)
			}
			sess.Results = out
		}
		return true
	})
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (models.Session, bool) {
	var (
		out models.Session
		ok  bool
	)
	s.view(func(d *Document) {
		if sess := findSession(d, id); sess != nil {
			out, ok = copySession(*sess), true
		}
	})
	return out, ok
}

// Sessions returns all sessions, newest start first.
func (s *Store) Sessions() []models.Session {
	var out []models.Session
	s.view(func(d *Document) { out = sortedSessions(d.Sessions) })
	return out
}

func findSession(d *Document, id string) *models.Session {
	if id == "" {
		return nil
	}
	for i := range d.Sessions {
		if d.Sessions[i].ID == id {
			return &d.Sessions[i]
		}
	}
	return nil
}

func copySession(sess models.Session) models.Session {
	sess.QuestionIDs = append([]string{}, sess.QuestionIDs...)
	sess.Results = append([]models.SessionResult{}, sess.Results...)
	if sess.Filters != nil {
		f := *sess.Filters
		sess.Filters = &f
	}
	if sess.FinishedAt != nil {
		v := *sess.FinishedAt
		sess.FinishedAt = &v
	}
	return sess
}

func sortedSessions(in []models.Session) []models.Session {
	out := make([]models.Session, 0, len(in))
	for _, sess := range in {
		out = append(out, copySession(sess))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return out
}
