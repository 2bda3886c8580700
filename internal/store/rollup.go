package store

import (
	"sort"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// rebuildRollups replays attempts in timestamp order. Attempts sharing a
// timestamp keep their list order.
func rebuildRollups(attempts []models.Attempt) map[string]models.Rollup {
	ordered := make([]models.Attempt, len(attempts))
	copy(ordered, attempts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].At < ordered[j].At })

	out := make(map[string]models.Rollup)
	for _, a := range ordered {
		r := out[a.QuestionID]
		r.Apply(a.Correct, a.At)
		out[a.QuestionID] = r
	}
	return out
}

// replayQuestion rebuilds the rollup of a single question.
func replayQuestion(attempts []models.Attempt, qid string) models.Rollup {
	var own []models.Attempt
	for _, a := range attempts {
		if a.QuestionID == qid {
			own = append(own, a)
		}
	}
	return rebuildRollups(own)[qid]
}

// Rollup returns the per-question aggregate for qid.
func (s *Store) Rollup(qid string) (models.Rollup, bool) {
	var (
		r  models.Rollup
		ok bool
	)
	s.view(func(d *Document) { r, ok = d.PerQuestion[qid] })
	return r, ok
}

// RebuildRollups discards the stored rollups and replays every attempt.
func (s *Store) RebuildRollups() {
	s.update(events.ReasonAttempts, false, func(d *Document) bool {
		d.PerQuestion = rebuildRollups(d.Attempts)
		return true
	})
}
