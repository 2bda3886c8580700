package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// ErrInvalidDocument is returned when an import cannot be parsed or fails
// validation. The store is left untouched.
var ErrInvalidDocument = errors.New("invalid document")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ImportOptions controls Import.
type ImportOptions struct {
	// Replace discards the current state and adopts the incoming document.
	Replace bool
}

// Export serializes the full state as indented JSON.
func (s *Store) Export() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	s.view(func(d *Document) { data, err = json.MarshalIndent(d, "", "  ") })
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return data, nil
}

// Import loads a document produced by Export (any version).
//
// In replace mode the incoming document is adopted wholesale, minus any
// collection its own tombstones delete, with rollups replayed from its
// attempts. In merge mode sessions and attempts
// are unioned by id with the later timestamp winning (ties keep the local
// record), favorites are unioned, tombstones keep the latest time per id,
// collections are unioned by id except tombstoned ones, and rollups are
// rebuilt from the merged attempts.
func (s *Store) Import(data []byte, opts ImportOptions) error {
	incoming, err := decodeImport(data)
	if err != nil {
		return err
	}

	s.update(events.ReasonImport, false, func(d *Document) bool {
		if opts.Replace {
			incoming.Collections = mergeCollectionLists(incoming.Collections, nil, tombstoneSet(incoming.DeletedCollections))
			if incoming.CreatedAt == 0 {
				incoming.CreatedAt = s.now()
			}
			incoming.Version = max(incoming.Version, CurrentVersion)
			incoming.PerQuestion = rebuildRollups(incoming.Attempts)
			*d = *incoming
			return true
		}
		mergeDocuments(d, incoming)
		return true
	})
	return nil
}

func decodeImport(data []byte) (*Document, error) {
	doc, from, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	finishDecode(doc, from)
	return doc, nil
}

func mergeDocuments(d, in *Document) {
	d.Sessions = mergeByTimestamp(d.Sessions, in.Sessions,
		func(s models.Session) string { return s.ID },
		func(s models.Session) int64 { return s.LastTouched() })
	d.Attempts = mergeByTimestamp(d.Attempts, in.Attempts,
		func(a models.Attempt) string { return a.ID },
		func(a models.Attempt) int64 { return a.At })

	for _, q := range in.Favorites {
		setFavorite(d, q, true)
	}

	d.DeletedCollections = mergeTombstones(d.DeletedCollections, in.DeletedCollections)
	d.Collections = mergeCollectionLists(d.Collections, in.Collections, tombstoneSet(d.DeletedCollections))

	for user, meta := range in.SyncMeta {
		if _, ok := d.SyncMeta[user]; !ok {
			d.SyncMeta[user] = meta
		}
	}
	d.PerQuestion = rebuildRollups(d.Attempts)
}

// mergeByTimestamp unions two record lists by id. An incoming record
// replaces a local one only when its timestamp is strictly greater.
func mergeByTimestamp[T any](local, incoming []T, id func(T) string, ts func(T) int64) []T {
	out := make([]T, len(local), len(local)+len(incoming))
	copy(out, local)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[id(r)] = i
	}
	for _, r := range incoming {
		i, ok := index[id(r)]
		if !ok {
			index[id(r)] = len(out)
			out = append(out, r)
			continue
		}
		if ts(r) > ts(out[i]) {
			out[i] = r
		}
	}
	return out
}

// SyncMeta returns the sync bookkeeping for a user. An empty key means the
// default guest user.
func (s *Store) SyncMeta(userKey string) models.SyncMeta {
	var m models.SyncMeta
	s.view(func(d *Document) { m = d.SyncMeta[syncKey(userKey)] })
	return m
}

// AllSyncMeta returns the bookkeeping for every user seen.
func (s *Store) AllSyncMeta() map[string]models.SyncMeta {
	var out map[string]models.SyncMeta
	s.view(func(d *Document) { out = maps.Clone(d.SyncMeta) })
	return out
}

// UpdateSyncMeta applies fn to a user's sync bookkeeping and persists it.
func (s *Store) UpdateSyncMeta(userKey string, fn func(*models.SyncMeta)) {
	key := syncKey(userKey)
	s.update(events.ReasonSyncMeta, false, func(d *Document) bool {
		m := d.SyncMeta[key]
		fn(&m)
		d.SyncMeta[key] = m
		return true
	})
}

func syncKey(userKey string) string {
	if userKey == "" {
		return models.DefaultUserKey
	}
	return userKey
}
