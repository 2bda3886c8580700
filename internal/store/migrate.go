package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// migration upgrades a raw document from Version-1 to Version.
type migration struct {
	Version     int
	Description string
	Apply       func(raw map[string]any)
}

var migrations = []migration{
	{
		Version:     1,
		Description: "normalize sessions, attempts and per-question rollups",
		Apply: func(raw map[string]any) {
			ensureArray(raw, "sessions")
			ensureArray(raw, "attempts")
			ensureObject(raw, "perQ")
		},
	},
	{
		Version:     2,
		Description: "rename perQ to perQuestion, add favorites, collections, tombstones and sync metadata",
		Apply: func(raw map[string]any) {
			if _, ok := raw["perQuestion"]; !ok {
				raw["perQuestion"] = raw["perQ"]
			}
			delete(raw, "perQ")
			ensureObject(raw, "perQuestion")
			ensureArray(raw, "favorites")
			ensureArray(raw, "collections")
			ensureArray(raw, "deletedCollections")
			ensureObject(raw, "syncMeta")
		},
	},
}

func ensureArray(raw map[string]any, key string) {
	if _, ok := raw[key].([]any); !ok {
		raw[key] = []any{}
	}
}

func ensureObject(raw map[string]any, key string) {
	if _, ok := raw[key].(map[string]any); !ok {
		raw[key] = map[string]any{}
	}
}

var errNotObject = errors.New("document is not a JSON object")

// migrateRaw runs every migration newer than the document's version and
// reports the version it started from.
func migrateRaw(raw map[string]any) (from int) {
	if v, ok := raw["version"].(float64); ok && v > 0 {
		from = int(v)
	}
	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		m.Apply(raw)
		raw["version"] = m.Version
	}
	return from
}

// parseDocument parses a document and upgrades it to the current layout
// without normalizing it. from is the version it was written with.
func parseDocument(data []byte) (doc *Document, from int, err error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parse document: %w", err)
	}
	if raw == nil {
		return nil, 0, errNotObject
	}

	from = migrateRaw(raw)

	upgraded, err := json.Marshal(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("re-encode document: %w", err)
	}
	doc = &Document{}
	if err := json.Unmarshal(upgraded, doc); err != nil {
		return nil, 0, fmt.Errorf("decode document: %w", err)
	}
	return doc, from, nil
}

// finishDecode normalizes a parsed document. Rollups written before version
// 2 could be summed across imports, so they are replayed from the attempts,
// as are rollups of a document whose attempts normalization pruned.
func finishDecode(doc *Document, from int) {
	n := len(doc.Attempts)
	doc.normalize()
	if from < 2 || len(doc.Attempts) != n {
		doc.PerQuestion = rebuildRollups(doc.Attempts)
	}
}

// decodeDocument parses, upgrades and normalizes a persisted document.
// Documents from a newer version load as-is with normalization.
func decodeDocument(data []byte) (*Document, error) {
	doc, from, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	finishDecode(doc, from)
	return doc, nil
}
