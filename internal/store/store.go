// Package store holds the local progress record: attempts, sessions,
// per-question rollups, favorites, collections, tombstones and sync metadata.
// The whole state is persisted as one JSON document under BlobKey.
package store

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
)

// BlobKey is the backend key the document is stored under.
const BlobKey = "pp.v1"

// CurrentVersion is the document version written by this package.
const CurrentVersion = 2

// Backend persists the serialized document. Load returns nil data for a
// missing key.
type Backend interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// Publisher receives change notifications. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// Document is the persisted layout of the store.
type Document struct {
	Version            int                        `json:"version"`
	CreatedAt          int64                      `json:"createdAt"`
	Sessions           []models.Session           `json:"sessions" validate:"dive"`
	Attempts           []models.Attempt           `json:"attempts" validate:"dive"`
	PerQuestion        map[string]models.Rollup   `json:"perQuestion"`
	Favorites          []string                   `json:"favorites"`
	Collections        []models.Collection        `json:"collections" validate:"dive"`
	DeletedCollections []models.Tombstone         `json:"deletedCollections" validate:"dive"`
	SyncMeta           map[string]models.SyncMeta `json:"syncMeta"`
}

// Store is the aggregate root. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	doc     *Document
	backend Backend
	bus     Publisher
	logger  *slog.Logger
	now     func() int64
	newID   func(prefix string) string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the epoch-millisecond clock.
func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) { s.newID = fn }
}

// New builds a store over backend and loads the persisted document.
// A nil backend keeps everything in memory; a nil bus drops notifications.
func New(backend Backend, bus Publisher, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		bus:     bus,
		logger:  slog.Default(),
		now:     models.NowMillis,
		newID:   genID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Load()
	return s
}

func genID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Load (re)reads the document from the backend. A missing or unreadable
// document leaves the store empty; it never fails.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		if s.doc == nil {
			s.doc = s.emptyDocument()
		}
		return
	}

	raw, err := s.backend.Load(BlobKey)
	if err != nil {
		s.logger.Warn("store: load failed, starting empty", "err", err)
		s.doc = s.emptyDocument()
		return
	}
	if len(raw) == 0 {
		s.doc = s.emptyDocument()
		s.saveLocked()
		return
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		s.logger.Warn("store: reset after parse error", "err", err)
		s.doc = s.emptyDocument()
		s.saveLocked()
		return
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = s.now()
	}
	s.doc = doc
}

func (s *Store) emptyDocument() *Document {
	d := &Document{Version: CurrentVersion, CreatedAt: s.now()}
	d.normalize()
	return d
}

// normalize replaces missing collections with empty ones and drops records
// that cannot be addressed.
func (d *Document) normalize() {
	if d.Sessions == nil {
		d.Sessions = []models.Session{}
	}
	if d.Attempts == nil {
		d.Attempts = []models.Attempt{}
	}
	if d.PerQuestion == nil {
		d.PerQuestion = map[string]models.Rollup{}
	}
	if d.Favorites == nil {
		d.Favorites = []string{}
	}
	if d.Collections == nil {
		d.Collections = []models.Collection{}
	}
	if d.DeletedCollections == nil {
		d.DeletedCollections = []models.Tombstone{}
	}
	if d.SyncMeta == nil {
		d.SyncMeta = map[string]models.SyncMeta{}
	}

	sessions := d.Sessions[:0]
	for _, sess := range d.Sessions {
		if sess.ID == "" {
			continue
		}
		if sess.QuestionIDs == nil {
			sess.QuestionIDs = []string{}
		}
		if sess.Results == nil {
			sess.Results = []models.SessionResult{}
		}
		sessions = append(sessions, sess)
	}
	// Repeated ids collapse to one record; the later timestamp wins.
	d.Sessions = mergeByTimestamp(nil, sessions,
		func(s models.Session) string { return s.ID },
		func(s models.Session) int64 { return s.LastTouched() })

	attempts := d.Attempts[:0]
	for _, a := range d.Attempts {
		if a.ID != "" {
			attempts = append(attempts, a)
		}
	}
	d.Attempts = mergeByTimestamp(nil, attempts,
		func(a models.Attempt) string { return a.ID },
		func(a models.Attempt) int64 { return a.At })

	cols := d.Collections[:0]
	for _, c := range d.Collections {
		if c.ID == "" {
			continue
		}
		cols = append(cols, normalizeCollection(c))
	}
	d.Collections = cols
}

// saveLocked writes the document. Write errors are logged, not returned:
// the in-memory state stays authoritative for this process.
func (s *Store) saveLocked() {
	if s.backend == nil {
		return
	}
	data, err := json.Marshal(s.doc)
	if err != nil {
		s.logger.Error("store: encode document", "err", err)
		return
	}
	if err := s.backend.Save(BlobKey, data); err != nil {
		s.logger.Error("store: save document", "err", err)
	}
}

func (s *Store) publish(reason events.Reason, remote bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Reason: reason, Remote: remote})
}

// update runs fn under the lock. When fn reports a change the document is
// persisted and, after the lock is released, a notification is published.
func (s *Store) update(reason events.Reason, remote bool, fn func(d *Document) bool) bool {
	s.mu.Lock()
	changed := fn(s.doc)
	if changed {
		s.saveLocked()
	}
	s.mu.Unlock()

	if changed {
		s.publish(reason, remote)
	}
	return changed
}

// view runs fn under the lock without persisting.
func (s *Store) view(fn func(d *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Clear resets the store to an empty document.
func (s *Store) Clear() {
	s.update(events.ReasonClear, false, func(d *Document) bool {
		*d = *s.emptyDocument()
		return true
	})
}

// Publish forwards an event on the store's bus. The sync orchestrator uses
// it to announce cycle summaries on the same channel as data changes.
func (s *Store) Publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Version returns the version of the loaded document.
func (s *Store) Version() int {
	var v int
	s.view(func(d *Document) { v = d.Version })
	return v
}

// CreatedAt returns when the document was first created.
func (s *Store) CreatedAt() int64 {
	var v int64
	s.view(func(d *Document) { v = d.CreatedAt })
	return v
}
