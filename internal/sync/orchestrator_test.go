package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu          stdsync.Mutex
	attempts    map[string]models.Attempt
	collections map[string]models.Collection
	offsets     []int
	pageCap     int // clamps limit like the server's MaxPageSize
	deleted     []string

	errFetchAttempts    error
	errUpsertAttempts   error
	errFetchCollections error
	errDelete           error

	block       chan struct{}
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		attempts:    map[string]models.Attempt{},
		collections: map[string]models.Collection{},
	}
}

func (f *fakeRemote) FetchAttempts(ctx context.Context, userID string, offset, limit int) ([]models.Attempt, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if f.errFetchAttempts != nil {
		return nil, f.errFetchAttempts
	}
	all := make([]models.Attempt, 0, len(f.attempts))
	for _, a := range f.attempts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].At < all[j].At })
	if f.pageCap > 0 {
		limit = min(limit, f.pageCap)
	}
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (f *fakeRemote) UpsertAttempts(ctx context.Context, userID string, attempts []models.Attempt) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errUpsertAttempts != nil {
		return 0, f.errUpsertAttempts
	}
	for _, a := range attempts {
		a.SessionID = ""
		f.attempts[a.ID] = a
	}
	return len(attempts), nil
}

func (f *fakeRemote) FetchCollections(ctx context.Context, userID string) ([]models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errFetchCollections != nil {
		return nil, f.errFetchCollections
	}
	out := make([]models.Collection, 0, len(f.collections))
	for _, c := range f.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) UpsertCollections(ctx context.Context, userID string, cols []models.Collection) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cols {
		f.collections[c.ID] = c
	}
	return len(cols), nil
}

func (f *fakeRemote) DeleteCollections(ctx context.Context, userID string, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errDelete != nil {
		return 0, f.errDelete
	}
	n := 0
	for _, id := range ids {
		if _, ok := f.collections[id]; ok {
			delete(f.collections, id)
			n++
		}
		f.deleted = append(f.deleted, id)
	}
	return n, nil
}

func (f *fakeRemote) fetchCycles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, off := range f.offsets {
		if off == 0 {
			n++
		}
	}
	return n
}

func signedIn(id string) Auth { return AuthFunc(func() string { return id }) }

func newLocal(t *testing.T) (*store.Store, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	return store.New(nil, bus), bus
}

func TestSyncAllUnauthenticated(t *testing.T) {
	local, _ := newLocal(t)
	remote := newFakeRemote()
	o := New(local, remote, signedIn(""))
	defer o.Close()

	res := o.SyncAll(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "Not authenticated.", res.Message)
	assert.Empty(t, remote.offsets)
}

func TestSyncAllFullCycle(t *testing.T) {
	local, bus := newLocal(t)
	var summaries []Result
	bus.Subscribe(func(ev events.Event) {
		if ev.Reason == events.ReasonSync {
			summaries = append(summaries, ev.Payload.(Result))
		}
	})

	mine := local.RecordAttempt("", models.QuestionRef{ID: "1"}, models.IndexAnswer(0), true, 100)
	cLocal := local.CreateCollection("Local")
	local.AddToCollection(cLocal, "1")
	cDead := local.CreateCollection("Dead")
	local.DeleteCollection(cDead)

	remote := newFakeRemote()
	remote.attempts["r1"] = models.Attempt{ID: "r1", QuestionID: "2", Correct: false, At: 50}
	remote.collections[cDead] = models.Collection{ID: cDead, Name: "Dead"}
	remote.collections["c_remote"] = models.Collection{ID: "c_remote", Name: "Remote", QuestionIDs: []string{"2"}}

	o := New(local, remote, signedIn("u1"), WithClock(func() int64 { return 777 }))
	defer o.Close()

	res := o.SyncAll(context.Background())

	require.True(t, res.OK, res.Message)
	assert.Equal(t, "Del C:1 • Pull A:1 (+1/0) • Push A:1 • Pull C:1 • Push C:1", res.Message)
	assert.Equal(t, 1, res.Summary.MergedCollections)
	assert.Equal(t, []string{cDead}, remote.deleted)
	assert.Empty(t, local.Tombstones())

	_, ok := local.Attempt("r1")
	assert.True(t, ok, "remote attempt merged")
	_, ok = remote.attempts[mine.ID]
	assert.True(t, ok, "local attempt pushed")
	_, ok = local.Collection("c_remote")
	assert.True(t, ok, "remote collection merged")
	assert.Equal(t, []string{"1"}, remote.collections[cLocal].QuestionIDs)
	_, ok = local.Collection(cDead)
	assert.False(t, ok)

	meta := local.SyncMeta("u1")
	assert.Equal(t, models.SyncMeta{
		LastPullAt: 777, LastPullCount: 1, LastPushAt: 777, LastPushCount: 1,
		LastCollectionsPullCount: 1, LastCollectionsPushCount: 1, LastCollectionsDeleteCount: 1,
		LastSyncAt: 777, LastSyncOK: true,
	}, meta)

	r, _ := local.Rollup("2")
	assert.Equal(t, 1, r.Count)

	second := o.SyncAll(context.Background())
	require.True(t, second.OK)
	assert.Equal(t, "Del C:0 • Pull A:2 (+0/0) • Push A:0 • Pull C:2 • Push C:0", second.Message)
	assert.Equal(t, store.MergeResult{Kept: 2}, second.Summary.Merge)
	assert.Equal(t, 2, second.Summary.MergedCollections)

	require.Len(t, summaries, 2)
	assert.Equal(t, res, summaries[0])
}

func TestSyncAllPaginates(t *testing.T) {
	for _, tc := range []struct {
		remote  int
		offsets []int
	}{
		{5, []int{0, 2, 4, 5}},
		{4, []int{0, 2, 4}},
		{1, []int{0, 1}},
		{0, []int{0}},
	} {
		local, _ := newLocal(t)
		remote := newFakeRemote()
		for i := 0; i < tc.remote; i++ {
			id := string(rune('a' + i))
			remote.attempts[id] = models.Attempt{ID: id, QuestionID: "q", At: int64(i + 1)}
		}
		o := New(local, remote, signedIn("u"), WithPageSize(2))

		res := o.SyncAll(context.Background())
		o.Close()

		require.True(t, res.OK)
		assert.Equal(t, tc.offsets, remote.offsets, "%d remote attempts", tc.remote)
		assert.Equal(t, tc.remote, res.Summary.RemoteAttempts)
		assert.Len(t, local.Attempts(), tc.remote)
	}
}

func TestSyncAllPagesPastClampedLimit(t *testing.T) {
	local, _ := newLocal(t)
	remote := newFakeRemote()
	remote.pageCap = 3
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("r%d", i)
		remote.attempts[id] = models.Attempt{ID: id, QuestionID: "q", At: int64(i + 1)}
	}
	o := New(local, remote, signedIn("u"), WithPageSize(5))
	defer o.Close()

	res := o.SyncAll(context.Background())

	require.True(t, res.OK, res.Message)
	assert.Equal(t, []int{0, 3, 6, 7}, remote.offsets)
	assert.Equal(t, 7, res.Summary.RemoteAttempts)
	assert.Len(t, local.Attempts(), 7)
}

func TestDeleteFailureKeepsTombstones(t *testing.T) {
	local, _ := newLocal(t)
	id := local.CreateCollection("x")
	local.DeleteCollection(id)
	local.RecordAttempt("", models.QuestionRef{ID: "1"}, models.IndexAnswer(0), true, 0)

	remote := newFakeRemote()
	remote.errDelete = errors.New("boom")
	remote.collections[id] = models.Collection{ID: id, Name: "x"}
	o := New(local, remote, signedIn("u"))
	defer o.Close()

	res := o.SyncAll(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, []string{"deletes"}, res.Summary.FailedPhases)
	assert.Equal(t, 1, res.Summary.PulledCollections)
	assert.Zero(t, res.Summary.MergedCollections, "tombstoned remote collection is not merged")
	assert.Contains(t, res.Message, "Sync failed (deletes)")
	assert.Len(t, local.Tombstones(), 1, "tombstones retained for retry")
	assert.Len(t, remote.attempts, 1, "attempts phase still ran")
	assert.False(t, local.SyncMeta("u").LastSyncOK)

	remote.errDelete = nil
	res = o.SyncAll(context.Background())
	assert.True(t, res.OK)
	assert.Empty(t, local.Tombstones())
}

func TestAttemptsFailureDoesNotBlockCollections(t *testing.T) {
	local, _ := newLocal(t)
	local.CreateCollection("Local")

	remote := newFakeRemote()
	remote.errFetchAttempts = errors.New("timeout")
	o := New(local, remote, signedIn("u"))
	defer o.Close()

	res := o.SyncAll(context.Background())

	assert.Equal(t, []string{"attempts"}, res.Summary.FailedPhases)
	assert.Len(t, remote.collections, 1)
	assert.Zero(t, local.SyncMeta("u").LastPullAt)
}

func TestPushFailureStillRecordsPull(t *testing.T) {
	local, _ := newLocal(t)
	local.RecordAttempt("", models.QuestionRef{ID: "1"}, models.IndexAnswer(0), true, 0)

	remote := newFakeRemote()
	remote.attempts["r"] = models.Attempt{ID: "r", QuestionID: "2", At: 1}
	remote.errUpsertAttempts = errors.New("503")
	o := New(local, remote, signedIn("u"), WithClock(func() int64 { return 9 }))
	defer o.Close()

	res := o.SyncAll(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Summary.Merge.Added)
	assert.Equal(t, int64(9), local.SyncMeta("u").LastPullAt)
	assert.Zero(t, local.SyncMeta("u").LastPushAt)
}

func TestSyncAllSerializesConcurrentCalls(t *testing.T) {
	local, _ := newLocal(t)
	remote := newFakeRemote()
	remote.block = make(chan struct{})
	o := New(local, remote, signedIn("u"))
	defer o.Close()

	var wg stdsync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.SyncAll(context.Background())
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(remote.block)
	wg.Wait()

	assert.Equal(t, int32(1), remote.maxInFlight.Load())
	assert.Equal(t, 3, remote.fetchCycles())
}

func TestDebouncedSyncCoalescesBursts(t *testing.T) {
	local, bus := newLocal(t)
	remote := newFakeRemote()
	remote.attempts["r"] = models.Attempt{ID: "r", QuestionID: "9", At: 1}
	o := New(local, remote, signedIn("u"), WithDebounce(30*time.Millisecond))
	defer o.Close()
	unsub := o.Watch(bus)
	defer unsub()

	for i := 0; i < 5; i++ {
		local.ToggleFavorite("1")
		local.RecordAttempt("", models.QuestionRef{ID: "1"}, models.IndexAnswer(0), true, 0)
	}

	require.Eventually(t, func() bool { return remote.fetchCycles() == 1 }, 2*time.Second, 5*time.Millisecond)

	// The sync's own merges and bookkeeping must not schedule another one.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, remote.fetchCycles())

	remote.mu.Lock()
	pushed := len(remote.attempts)
	remote.mu.Unlock()
	assert.Equal(t, 6, pushed)
}

func TestNotifyChangedRequiresUser(t *testing.T) {
	local, _ := newLocal(t)
	remote := newFakeRemote()
	o := New(local, remote, signedIn(""), WithDebounce(5*time.Millisecond))
	defer o.Close()

	o.NotifyChanged()
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, remote.fetchCycles())
}

func TestStartStopAuto(t *testing.T) {
	local, _ := newLocal(t)
	remote := newFakeRemote()
	o := New(local, remote, signedIn("u"))
	defer o.Close()

	o.StartAuto(10 * time.Millisecond)
	assert.True(t, o.AutoRunning())
	require.Eventually(t, func() bool { return remote.fetchCycles() >= 2 }, 2*time.Second, 5*time.Millisecond)

	o.StopAuto()
	assert.False(t, o.AutoRunning())
	time.Sleep(30 * time.Millisecond)
	settled := remote.fetchCycles()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, remote.fetchCycles())
}

func TestCloseStopsBackgroundWork(t *testing.T) {
	local, _ := newLocal(t)
	remote := newFakeRemote()
	remote.block = make(chan struct{})
	o := New(local, remote, signedIn("u"), WithDebounce(time.Millisecond))

	o.NotifyChanged()
	require.Eventually(t, func() bool { return remote.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		o.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the sync in flight")
	}

	o.NotifyChanged()
	o.StartAuto(time.Millisecond)
	assert.False(t, o.AutoRunning())
	o.Close()
}

func TestSummaryLine(t *testing.T) {
	s := Summary{DeletedCollections: 1, RemoteAttempts: 10, Merge: store.MergeResult{Added: 3, Updated: 2}, PushedAttempts: 4, PulledCollections: 5, PushedCollections: 6}
	assert.Equal(t, "Del C:1 • Pull A:10 (+3/2) • Push A:4 • Pull C:5 • Push C:6", s.Line())
	assert.True(t, slices.Equal([]string(nil), s.FailedPhases))
}
