package events

import "strings"

// Reason tags a change notification so observers can re-render selectively.
type Reason string

// Canonical change reasons
const (
	ReasonAttempts    Reason = "attempts"
	ReasonSessions    Reason = "sessions"
	ReasonFavorites   Reason = "favorites"
	ReasonCollections Reason = "collections"
	ReasonSyncMeta    Reason = "sync-meta"
	ReasonImport      Reason = "import"
	ReasonClear       Reason = "clear"
	ReasonSync        Reason = "sync"
)

// AllReasons returns all valid change reasons.
func AllReasons() map[Reason]bool {
	return map[Reason]bool{
		ReasonAttempts:    true,
		ReasonSessions:    true,
		ReasonFavorites:   true,
		ReasonCollections: true,
		ReasonSyncMeta:    true,
		ReasonImport:      true,
		ReasonClear:       true,
		ReasonSync:        true,
	}
}

// IsValidReason checks if the given reason string is valid.
func IsValidReason(r string) bool {
	return AllReasons()[Reason(r)]
}

// NormalizeReason maps singular, plural and legacy spellings to the canonical reason.
// Returns the canonical reason and true if valid, or empty string and false if invalid.
func NormalizeReason(r string) (Reason, bool) {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "attempt", "attempts", "save":
		return ReasonAttempts, true
	case "session", "sessions":
		return ReasonSessions, true
	case "favorite", "favorites", "fav", "favs":
		return ReasonFavorites, true
	case "collection", "collections":
		return ReasonCollections, true
	case "sync-meta", "sync_meta", "syncmeta":
		return ReasonSyncMeta, true
	case "import":
		return ReasonImport, true
	case "clear", "reset":
		return ReasonClear, true
	case "sync", "sync:status":
		return ReasonSync, true
	default:
		return "", false
	}
}

// IsLocalMutation reports whether a change came from user data edits, as opposed to
// sync bookkeeping. Only local mutations should schedule a new sync.
func IsLocalMutation(r Reason) bool {
	switch r {
	case ReasonSyncMeta, ReasonSync:
		return false
	}
	return true
}
