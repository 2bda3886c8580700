package store

import (
	"slices"
	"strings"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// CreateCollection adds an empty collection and returns its id. A blank
// name falls back to the default collection name.
func (s *Store) CreateCollection(name string) string {
	c := models.Collection{ID: s.newID("c"), Name: collectionName(name), QuestionIDs: []string{}}
	s.update(events.ReasonCollections, false, func(d *Document) bool {
		d.Collections = append(d.Collections, c)
		return true
	})
	return c.ID
}

// RenameCollection changes a collection's name.
func (s *Store) RenameCollection(id, name string) bool {
	return s.update(events.ReasonCollections, false, func(d *Document) bool {
		c := findCollection(d, id)
		if c == nil {
			return false
		}
		c.Name = collectionName(name)
		return true
	})
}

// DeleteCollection removes a collection and leaves a tombstone so a later
// merge cannot bring it back.
func (s *Store) DeleteCollection(id string) bool {
	now := s.now()
	return s.update(events.ReasonCollections, false, func(d *Document) bool {
		idx := slices.IndexFunc(d.Collections, func(c models.Collection) bool { return c.ID == id })
		if idx < 0 {
			return false
		}
		d.DeletedCollections = mergeTombstones(d.DeletedCollections, []models.Tombstone{{ID: id, At: now}})
		d.Collections = slices.Delete(d.Collections, idx, idx+1)
		return true
	})
}

// AddToCollection appends qid to the collection unless already present.
func (s *Store) AddToCollection(id, qid string) bool {
	if qid == "" {
		return false
	}
	return s.update(events.ReasonCollections, false, func(d *Document) bool {
		c := findCollection(d, id)
		if c == nil || c.Has(qid) {
			return false
		}
		c.QuestionIDs = append(c.QuestionIDs, qid)
		return true
	})
}

// RemoveFromCollection drops qid from the collection.
func (s *Store) RemoveFromCollection(id, qid string) bool {
	return s.update(events.ReasonCollections, false, func(d *Document) bool {
		c := findCollection(d, id)
		if c == nil {
			return false
		}
		idx := slices.Index(c.QuestionIDs, qid)
		if idx < 0 {
			return false
		}
		c.QuestionIDs = slices.Delete(c.QuestionIDs, idx, idx+1)
		return true
	})
}

// IsInCollection reports whether qid belongs to the collection.
func (s *Store) IsInCollection(id, qid string) bool {
	var ok bool
	s.view(func(d *Document) {
		if c := findCollection(d, id); c != nil {
			ok = c.Has(qid)
		}
	})
	return ok
}

// CollectionsContaining returns every collection that holds qid.
func (s *Store) CollectionsContaining(qid string) []models.Collection {
	var out []models.Collection
	s.view(func(d *Document) {
		for _, c := range d.Collections {
			if c.Has(qid) {
				out = append(out, copyCollection(c))
			}
		}
	})
	return out
}

// Collections returns all collections.
func (s *Store) Collections() []models.Collection {
	var out []models.Collection
	s.view(func(d *Document) { out = copyCollections(d.Collections) })
	return out
}

// Collection returns the collection with the given id.
func (s *Store) Collection(id string) (models.Collection, bool) {
	var (
		out models.Collection
		ok  bool
	)
	s.view(func(d *Document) {
		if c := findCollection(d, id); c != nil {
			out, ok = copyCollection(*c), true
		}
	})
	return out, ok
}

// Tombstones returns the pending collection deletions.
func (s *Store) Tombstones() []models.Tombstone {
	var out []models.Tombstone
	s.view(func(d *Document) { out = append([]models.Tombstone{}, d.DeletedCollections...) })
	return out
}

// ClearTombstones forgets the tombstones for ids once their deletion has
// reached the remote store. It returns how many were removed.
func (s *Store) ClearTombstones(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	var removed int
	s.update(events.ReasonCollections, true, func(d *Document) bool {
		before := len(d.DeletedCollections)
		d.DeletedCollections = slices.DeleteFunc(d.DeletedCollections, func(t models.Tombstone) bool {
			return slices.Contains(ids, t.ID)
		})
		removed = before - len(d.DeletedCollections)
		return removed > 0
	})
	return removed
}

func findCollection(d *Document, id string) *models.Collection {
	if id == "" {
		return nil
	}
	for i := range d.Collections {
		if d.Collections[i].ID == id {
			return &d.Collections[i]
		}
	}
	return nil
}

func collectionName(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return models.DefaultCollectionName
}

// normalizeCollection trims the name and de-duplicates question ids,
// keeping first-seen order.
func normalizeCollection(c models.Collection) models.Collection {
	c.Name = collectionName(c.Name)
	seen := make(map[string]bool, len(c.QuestionIDs))
	qids := make([]string, 0, len(c.QuestionIDs))
	for _, q := range c.QuestionIDs {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		qids = append(qids, q)
	}
	c.QuestionIDs = qids
	return c
}

func copyCollection(c models.Collection) models.Collection {
	c.QuestionIDs = append([]string{}, c.QuestionIDs...)
	return c
}

func copyCollections(in []models.Collection) []models.Collection {
	out := make([]models.Collection, 0, len(in))
	for _, c := range in {
		out = append(out, copyCollection(c))
	}
	return out
}

// mergeTombstones unions two tombstone lists, keeping the latest deletion
// time per id. Order follows first appearance.
func mergeTombstones(a, b []models.Tombstone) []models.Tombstone {
	out := make([]models.Tombstone, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))
	for _, t := range slices.Concat(a, b) {
		if t.ID == "" {
			continue
		}
		if i, ok := index[t.ID]; ok {
			if t.At > out[i].At {
				out[i].At = t.At
			}
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

func tombstoneSet(ts []models.Tombstone) map[string]int64 {
	out := make(map[string]int64, len(ts))
	for _, t := range ts {
		out[t.ID] = t.At
	}
	return out
}

// mergeCollectionLists unions collections by id. The first name seen wins
// and question ids are unioned. Collections whose id is in skip are
// dropped.
func mergeCollectionLists(a, b []models.Collection, skip map[string]int64) []models.Collection {
	out := make([]models.Collection, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))
	for _, c := range slices.Concat(a, b) {
		if c.ID == "" {
			continue
		}
		if _, dead := skip[c.ID]; dead {
			continue
		}
		if i, ok := index[c.ID]; ok {
			prev := &out[i]
			prev.QuestionIDs = append(prev.QuestionIDs, c.QuestionIDs...)
			*prev = normalizeCollection(*prev)
			continue
		}
		index[c.ID] = len(out)
		out = append(out, normalizeCollection(copyCollection(c)))
	}
	return out
}

// sameCollection compares name and question-id set, ignoring order.
func sameCollection(a, b models.Collection) bool {
	if a.Name != b.Name {
		return false
	}
	as := slices.Compact(slices.Sorted(slices.Values(a.QuestionIDs)))
	bs := slices.Compact(slices.Sorted(slices.Values(b.QuestionIDs)))
	return slices.Equal(as, bs)
}
