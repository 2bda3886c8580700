package store

import (
	"slices"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// MergeResult counts the outcome of merging a remote attempt batch.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Kept    int `json:"kept"`
}

// MergeAttempts folds remote attempts into the local list. Unknown ids are
// added; a known id is overwritten only when the remote timestamp is
// strictly greater. Session links are not synced and are dropped. Rollups
// are rebuilt from scratch afterwards.
func (s *Store) MergeAttempts(remote []models.Attempt) MergeResult {
	var res MergeResult
	s.update(events.ReasonAttempts, true, func(d *Document) bool {
		index := make(map[string]int, len(d.Attempts))
		for i, a := range d.Attempts {
			index[a.ID] = i
		}

		for _, r := range remote {
			if r.ID == "" || r.QuestionID == "" {
				continue
			}
			r.SessionID = ""
			r.Value = r.Value.Coerce(r.Type)

			i, ok := index[r.ID]
			switch {
			case !ok:
				index[r.ID] = len(d.Attempts)
				d.Attempts = append(d.Attempts, r)
				res.Added++
			case r.At > d.Attempts[i].At:
				d.Attempts[i] = r
				res.Updated++
			default:
				res.Kept++
			}
		}

		if res.Added+res.Updated == 0 {
			return false
		}
		d.PerQuestion = rebuildRollups(d.Attempts)
		return true
	})
	return res
}

// MergeCollections unions remote collections into the local list, skipping
// any id with a local tombstone. Local names win; question ids are unioned.
// It returns how many remote collections were considered.
func (s *Store) MergeCollections(remote []models.Collection) int {
	var accepted int
	s.update(events.ReasonCollections, true, func(d *Document) bool {
		dead := tombstoneSet(d.DeletedCollections)
		live := make([]models.Collection, 0, len(remote))
		for _, c := range remote {
			if _, ok := dead[c.ID]; ok || c.ID == "" {
				continue
			}
			live = append(live, c)
		}
		accepted = len(live)

		merged := mergeCollectionLists(d.Collections, live, dead)
		if slices.EqualFunc(merged, d.Collections, collectionsEqual) {
			return false
		}
		d.Collections = merged
		return true
	})
	return accepted
}

func collectionsEqual(a, b models.Collection) bool {
	return a.ID == b.ID && a.Name == b.Name && slices.Equal(a.QuestionIDs, b.QuestionIDs)
}

// AttemptsMissingFrom returns local attempts whose id is not in remoteIDs.
func (s *Store) AttemptsMissingFrom(remoteIDs []string) []models.Attempt {
	known := make(map[string]struct{}, len(remoteIDs))
	for _, id := range remoteIDs {
		known[id] = struct{}{}
	}

	var out []models.Attempt
	s.view(func(d *Document) {
		for _, a := range d.Attempts {
			if _, ok := known[a.ID]; !ok {
				out = append(out, a)
			}
		}
	})
	return out
}

// CollectionsDiffering returns local collections that are absent from
// remote or differ from the remote copy by name or question-id set.
func (s *Store) CollectionsDiffering(remote []models.Collection) []models.Collection {
	byID := make(map[string]models.Collection, len(remote))
	for _, c := range remote {
		byID[c.ID] = c
	}

	var out []models.Collection
	s.view(func(d *Document) {
		for _, c := range d.Collections {
			r, ok := byID[c.ID]
			if !ok || !sameCollection(c, r) {
				out = append(out, copyCollection(c))
			}
		}
	})
	return out
}
