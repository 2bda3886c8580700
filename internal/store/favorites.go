package store

import (
	"slices"

	"github.com/marcus/pratica/internal/events"
)

// IsFavorite reports whether qid is marked as a favorite.
func (s *Store) IsFavorite(qid string) bool {
	var ok bool
	s.view(func(d *Document) { ok = slices.Contains(d.Favorites, qid) })
	return ok
}

// SetFavorite adds or removes qid from the favorites. It returns whether
// anything changed.
func (s *Store) SetFavorite(qid string, on bool) bool {
	if qid == "" {
		return false
	}
	return s.update(events.ReasonFavorites, false, func(d *Document) bool {
		return setFavorite(d, qid, on)
	})
}

// ToggleFavorite flips qid's favorite status and returns the new status.
func (s *Store) ToggleFavorite(qid string) bool {
	if qid == "" {
		return false
	}
	var on bool
	s.update(events.ReasonFavorites, false, func(d *Document) bool {
		on = !slices.Contains(d.Favorites, qid)
		return setFavorite(d, qid, on)
	})
	return on
}

// Favorites returns the favorite question ids in the order they were added.
func (s *Store) Favorites() []string {
	var out []string
	s.view(func(d *Document) { out = append([]string{}, d.Favorites...) })
	return out
}

func setFavorite(d *Document, qid string, on bool) bool {
	idx := slices.Index(d.Favorites, qid)
	switch {
	case on && idx < 0:
		d.Favorites = append(d.Favorites, qid)
		return true
	case !on && idx >= 0:
		d.Favorites = slices.Delete(d.Favorites, idx, idx+1)
		return true
	}
	return false
}
