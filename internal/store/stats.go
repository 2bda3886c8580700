package store

import (
	"maps"
	"sort"

	"github.com/marcus/pratica/internal/models"
)

// DefaultRecentAttempts is how many attempts Stats lists when asked for a
// non-positive count.
const DefaultRecentAttempts = 20

// Stats aggregates the current state. recentN bounds the recent-attempts
// list.
func (s *Store) Stats(recentN int) models.Stats {
	if recentN <= 0 {
		recentN = DefaultRecentAttempts
	}

	var (
		attempts    []models.Attempt
		sessions    []models.Session
		perQuestion map[string]models.Rollup
	)
	s.view(func(d *Document) {
		attempts = append([]models.Attempt{}, d.Attempts...)
		sessions = sortedSessions(d.Sessions)
		perQuestion = maps.Clone(d.PerQuestion)
	})

	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].At > attempts[j].At })

	st := models.Stats{
		Sessions:     sessions,
		PerQuestion:  perQuestion,
		ByCategory:   map[string]models.Tally{},
		ByDifficulty: map[string]models.Tally{},
	}

	unique := make(map[string]struct{})
	for _, a := range attempts {
		st.Totals.Attempts++
		if a.Correct {
			st.Totals.Correct++
		}
		unique[a.QuestionID] = struct{}{}
		if a.Category != "" {
			st.ByCategory[a.Category] = tally(st.ByCategory[a.Category], a.Correct)
		}
		if a.Difficulty != "" {
			st.ByDifficulty[a.Difficulty] = tally(st.ByDifficulty[a.Difficulty], a.Correct)
		}
	}
	st.Totals.UniqueQuestionCount = len(unique)
	if st.Totals.Attempts > 0 {
		st.Totals.Accuracy = float64(st.Totals.Correct) / float64(st.Totals.Attempts)
		last := attempts[0].At
		st.Totals.LastAttemptAt = &last
	}

	if len(attempts) > recentN {
		attempts = attempts[:recentN]
	}
	st.RecentAttempts = attempts
	return st
}

func tally(t models.Tally, correct bool) models.Tally {
	t.Attempts++
	if correct {
		t.Correct++
	}
	return t
}
