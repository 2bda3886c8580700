package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	loadErr error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}}
}

func (m *memBackend) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memBackend) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memBackend) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type testClock struct {
	mu  sync.Mutex
	now int64
}

func (c *testClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ms
}

func seqIDs() func(string) string {
	var mu sync.Mutex
	counts := map[string]int{}
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		counts[prefix]++
		return fmt.Sprintf("%s%d", prefix, counts[prefix])
	}
}

type fixture struct {
	store   *Store
	backend *memBackend
	bus     *events.Bus
	clock   *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, newMemBackend())
}

func newFixtureWith(t *testing.T, backend *memBackend) *fixture {
	t.Helper()
	clock := &testClock{now: 1_000_000}
	bus := events.NewBus()
	s := New(backend, bus, WithClock(clock.Now), WithIDGenerator(seqIDs()))
	return &fixture{store: s, backend: backend, bus: bus, clock: clock}
}

func (f *fixture) reasons(t *testing.T) *[]events.Event {
	t.Helper()
	var (
		mu  sync.Mutex
		got []events.Event
	)
	unsub := f.bus.Subscribe(func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})
	t.Cleanup(unsub)
	return &got
}

func TestLoadMissingBlobStartsEmpty(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, CurrentVersion, f.store.Version())
	assert.Equal(t, int64(1_000_000), f.store.CreatedAt())
	assert.Empty(t, f.store.Attempts())
	assert.Equal(t, 1, f.backend.saveCount(), "fresh document should be written once")
}

func TestLoadCorruptBlobStartsFresh(t *testing.T) {
	for _, blob := range []string{"{not json", "null", "[1,2]", `{"attempts": 7}`} {
		t.Run(blob, func(t *testing.T) {
			b := newMemBackend()
			b.data[BlobKey] = []byte(blob)

			f := newFixtureWith(t, b)

			assert.Empty(t, f.store.Attempts())
			assert.Equal(t, CurrentVersion, f.store.Version())

			reloaded, err := decodeDocument(b.data[BlobKey])
			require.NoError(t, err, "corrupt blob should be replaced by a valid one")
			assert.Equal(t, CurrentVersion, reloaded.Version)
		})
	}
}

func TestLoadBackendErrorStartsEmpty(t *testing.T) {
	b := newMemBackend()
	b.loadErr = errors.New("disk on fire")

	f := newFixtureWith(t, b)

	assert.Empty(t, f.store.Sessions())
	assert.Zero(t, f.backend.saveCount(), "a failed read must not overwrite stored data")
}

func TestLoadMigratesVersion1(t *testing.T) {
	b := newMemBackend()
	b.data[BlobKey] = []byte(`{
		"version": 1, "createdAt": 5,
		"sessions": [{"id":"s_x","startedAt":10,"finishedAt":null,"filters":null,"questionIds":["1"],"results":[]}],
		"attempts": [
			{"id":"a_x","sessionId":"s_x","qid":"1","tipo":"lacuna","categoria":null,"dificuldade":null,"value":"casa","correct":true,"at":20},
			{"id":"a_y","sessionId":null,"qid":"1","tipo":"lacuna","value":"casa","correct":true,"at":30}
		],
		"perQ": {"1": {"count":9,"correct":9,"lastAt":30,"lastCorrect":true,"streak":9,"bestStreak":9}}
	}`)

	f := newFixtureWith(t, b)
	s := f.store

	assert.Equal(t, 2, s.Version())
	assert.Equal(t, int64(5), s.CreatedAt())
	assert.Len(t, s.Sessions(), 1)
	assert.Empty(t, s.Favorites())
	assert.Empty(t, s.Collections())
	assert.Empty(t, s.Tombstones())

	r, ok := s.Rollup("1")
	require.True(t, ok)
	assert.Equal(t, models.Rollup{Count: 2, Correct: 2, LastAt: 30, LastCorrect: true, Streak: 2, BestStreak: 2}, r,
		"rollups from old documents are replayed from attempts")

	a, ok := s.Attempt("a_x")
	require.True(t, ok)
	assert.Equal(t, models.TextAnswer("casa"), a.Value)
}

func TestLoadUnversionedDocument(t *testing.T) {
	b := newMemBackend()
	b.data[BlobKey] = []byte(`{"attempts":[{"id":"a1","qid":"9","tipo":"verdadeiro_falso","value":true,"correct":false,"at":3}]}`)

	s := newFixtureWith(t, b).store

	assert.Equal(t, 2, s.Version())
	assert.Empty(t, s.Sessions())
	r, ok := s.Rollup("9")
	require.True(t, ok)
	assert.Equal(t, 1, r.Count)
}

func TestLoadCollapsesRepeatedAttemptIDs(t *testing.T) {
	b := newMemBackend()
	b.data[BlobKey] = []byte(`{"version":2,"createdAt":1,
		"attempts":[
			{"id":"a1","qid":"9","correct":true,"at":3},
			{"id":"a1","qid":"9","correct":true,"at":3}
		],
		"perQuestion":{"9":{"count":2,"correct":2,"lastAt":3,"lastCorrect":true,"streak":2,"bestStreak":2}}}`)

	s := newFixtureWith(t, b).store

	assert.Len(t, s.Attempts(), 1)
	r, ok := s.Rollup("9")
	require.True(t, ok)
	assert.Equal(t, models.Rollup{Count: 1, Correct: 1, LastAt: 3, LastCorrect: true, Streak: 1, BestStreak: 1}, r)
}

func TestLoadFutureVersionKeepsVersion(t *testing.T) {
	b := newMemBackend()
	b.data[BlobKey] = []byte(`{"version":7,"createdAt":1,"attempts":[],"somethingNew":{"x":1}}`)

	s := newFixtureWith(t, b).store

	assert.Equal(t, 7, s.Version())
	assert.NotNil(t, s.AllSyncMeta())
}

func TestPersistThenReload(t *testing.T) {
	b := newMemBackend()
	f := newFixtureWith(t, b)
	f.store.ToggleFavorite("42")
	cid := f.store.CreateCollection("Revisão")

	again := newFixtureWith(t, b).store

	assert.True(t, again.IsFavorite("42"))
	c, ok := again.Collection(cid)
	require.True(t, ok)
	assert.Equal(t, "Revisão", c.Name)
}

func TestNotificationsPublishedAfterUnlock(t *testing.T) {
	f := newFixture(t)
	var seen int
	unsub := f.bus.Subscribe(func(ev events.Event) {
		// Reading from a handler would deadlock if the store lock were held.
		seen += len(f.store.Favorites())
	})
	defer unsub()

	f.store.SetFavorite("1", true)

	assert.Equal(t, 1, seen)
}

func TestMutationReasons(t *testing.T) {
	f := newFixture(t)
	got := f.reasons(t)
	s := f.store

	sid := s.StartSession(nil, []string{"1"})
	s.RecordAttempt(sid, models.QuestionRef{ID: "1"}, models.IndexAnswer(0), true, 0)
	s.ToggleFavorite("1")
	cid := s.CreateCollection("x")
	s.UpdateSyncMeta("", func(m *models.SyncMeta) { m.LastPullCount = 3 })
	s.DeleteCollection(cid)
	s.ClearTombstones([]string{cid})
	s.Clear()

	var reasons []events.Reason
	for _, ev := range *got {
		reasons = append(reasons, ev.Reason)
	}
	assert.Equal(t, []events.Reason{
		events.ReasonSessions,
		events.ReasonAttempts,
		events.ReasonFavorites,
		events.ReasonCollections,
		events.ReasonSyncMeta,
		events.ReasonCollections,
		events.ReasonCollections,
		events.ReasonClear,
	}, reasons)
	assert.True(t, (*got)[6].Remote, "clearing tombstones is sync bookkeeping")
	assert.False(t, (*got)[5].Remote)
}

func TestNoOpMutationsDoNotPersist(t *testing.T) {
	f := newFixture(t)
	got := f.reasons(t)
	before := f.backend.saveCount()

	assert.False(t, f.store.SetFavorite("1", false))
	assert.False(t, f.store.RenameCollection("missing", "x"))
	assert.False(t, f.store.FinishSession("missing", nil))
	assert.Zero(t, f.store.ClearTombstones([]string{"nope"}))

	assert.Equal(t, before, f.backend.saveCount())
	assert.Empty(t, *got)
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	f.store.RecordAttempt("", models.QuestionRef{ID: "1"}, models.IndexAnswer(1), true, 0)
	f.store.SetFavorite("1", true)
	f.store.UpdateSyncMeta("u1", func(m *models.SyncMeta) { m.LastSyncOK = true })

	f.store.Clear()

	st := f.store.Stats(0)
	assert.Zero(t, st.Totals.Attempts)
	assert.Empty(t, st.PerQuestion)
	assert.Empty(t, f.store.Favorites())
	assert.Empty(t, f.store.AllSyncMeta())
}

func TestNilBackendAndBus(t *testing.T) {
	s := New(nil, nil)
	s.SetFavorite("1", true)
	assert.True(t, s.IsFavorite("1"))
	s.Load()
	assert.True(t, s.IsFavorite("1"), "reload without a backend keeps memory state")
}
