package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/fold"
	"github.com/marcus/pratica/internal/models"
)

type collectionsFile struct {
	Collections []models.Collection `json:"collections"`
}

// ExportCollections writes {"collections": [...]}.
func (s *Store) ExportCollections() ([]byte, error) {
	data, err := json.MarshalIndent(collectionsFile{Collections: s.Collections()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export collections: %w", err)
	}
	return data, nil
}

// ImportCollections merges collections from a file holding
// {"collections": [...]}, a bare array, or a single collection object.
// Collections without an id get one derived from their name. Tombstoned ids
// are skipped. It returns how many collections the file contained.
func (s *Store) ImportCollections(data []byte) (int, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	incoming := ensureCollectionIDs(collectionEntries(raw))

	s.update(events.ReasonCollections, false, func(d *Document) bool {
		d.Collections = mergeCollectionLists(d.Collections, incoming, tombstoneSet(d.DeletedCollections))
		return true
	})
	return len(incoming), nil
}

// collectionEntries accepts the three shapes a collections file may take.
func collectionEntries(raw any) []map[string]any {
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		if cols, ok := v["collections"].([]any); ok {
			list = cols
		} else if v["id"] != nil || v["name"] != nil || v["qids"] != nil {
			list = []any{v}
		}
	}

	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func ensureCollectionIDs(entries []map[string]any) []models.Collection {
	used := make(map[string]bool, len(entries))
	out := make([]models.Collection, 0, len(entries))
	for _, e := range entries {
		name := scalarString(e["name"])
		id := strings.TrimSpace(scalarString(e["id"]))
		if id == "" {
			id = fold.Slug(name)
		}
		if id == "" {
			id = "col-" + uuid.NewString()[:8]
		}
		base := id
		for n := 2; used[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		used[id] = true

		var qids []string
		if list, ok := e["qids"].([]any); ok {
			for _, q := range list {
				if s := scalarString(q); s != "" {
					qids = append(qids, s)
				}
			}
		}
		out = append(out, normalizeCollection(models.Collection{ID: id, Name: name, QuestionIDs: qids}))
	}
	return out
}

// scalarString renders JSON strings and numbers as text.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
