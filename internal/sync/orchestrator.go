// Package sync reconciles the local store with a remote store: pending
// collection deletions are pushed, remote attempts and collections are
// pulled and merged, and local-only records are pushed back.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	stdsync "sync"
	"time"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/store"
)

// PageSize is how many remote attempts are requested per page.
const PageSize = 1000

// Remote is the per-user query/upsert interface of the remote store.
type Remote interface {
	FetchAttempts(ctx context.Context, userID string, offset, limit int) ([]models.Attempt, error)
	UpsertAttempts(ctx context.Context, userID string, attempts []models.Attempt) (int, error)
	FetchCollections(ctx context.Context, userID string) ([]models.Collection, error)
	UpsertCollections(ctx context.Context, userID string, cols []models.Collection) (int, error)
	DeleteCollections(ctx context.Context, userID string, ids []string) (int, error)
}

// Auth reports the current user. An empty id means nobody is signed in.
type Auth interface {
	UserID() string
}

// AuthFunc adapts a function to Auth.
type AuthFunc func() string

// UserID implements Auth.
func (f AuthFunc) UserID() string { return f() }

// Local is the part of the store the orchestrator reads and merges into.
// *store.Store satisfies it.
type Local interface {
	Tombstones() []models.Tombstone
	ClearTombstones(ids []string) int
	MergeAttempts(remote []models.Attempt) store.MergeResult
	AttemptsMissingFrom(remoteIDs []string) []models.Attempt
	MergeCollections(remote []models.Collection) int
	CollectionsDiffering(remote []models.Collection) []models.Collection
	UpdateSyncMeta(userKey string, fn func(*models.SyncMeta))
	Publish(events.Event)
}

// Summary carries the counts of one sync cycle.
type Summary struct {
	UserID             string            `json:"userId"`
	DeletedCollections int               `json:"deletedCollections"`
	RemoteAttempts     int               `json:"remoteAttempts"`
	Merge              store.MergeResult `json:"merge"`
	PushedAttempts     int               `json:"pushedAttempts"`
	PulledCollections  int               `json:"pulledCollections"`
	MergedCollections  int               `json:"mergedCollections"` // pulled minus locally tombstoned
	PushedCollections  int               `json:"pushedCollections"`
	FailedPhases       []string          `json:"failedPhases,omitempty"`
}

// Result is what SyncAll reports to the caller.
type Result struct {
	OK      bool    `json:"ok"`
	Message string  `json:"message"`
	Summary Summary `json:"summary"`
}

// Line formats the counts the way the status bar shows them.
func (s Summary) Line() string {
	return fmt.Sprintf("Del C:%d • Pull A:%d (+%d/%d) • Push A:%d • Pull C:%d • Push C:%d",
		s.DeletedCollections, s.RemoteAttempts, s.Merge.Added, s.Merge.Updated,
		s.PushedAttempts, s.PulledCollections, s.PushedCollections)
}

// Orchestrator runs sync cycles. At most one cycle runs at a time.
type Orchestrator struct {
	local    Local
	remote   Remote
	auth     Auth
	logger   *slog.Logger
	now      func() int64
	pageSize int
	debounce time.Duration

	running stdsync.Mutex

	mu       stdsync.Mutex
	closed   bool
	timer    *time.Timer
	stopAuto chan struct{}
	wg       stdsync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for phase failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPageSize overrides the attempts page size.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithDebounce sets the delay between a local change and the sync it triggers.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithClock overrides the epoch-millisecond clock used for sync metadata.
func WithClock(now func() int64) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. Call Close to stop background syncs.
func New(local Local, remote Remote, auth Auth, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		local:    local,
		remote:   remote,
		auth:     auth,
		logger:   slog.Default(),
		now:      models.NowMillis,
		pageSize: PageSize,
		debounce: DefaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SyncAll runs one full cycle: tombstone deletes, then attempts, then
// collections. A failing phase is logged and does not stop the next one.
// Concurrent calls wait for the running cycle to finish.
func (o *Orchestrator) SyncAll(ctx context.Context) Result {
	userID := ""
	if o.auth != nil {
		userID = o.auth.UserID()
	}
	if userID == "" || o.remote == nil {
		return Result{OK: false, Message: "Not authenticated."}
	}

	o.running.Lock()
	defer o.running.Unlock()

	sum := Summary{UserID: userID}
	log := o.logger.With("user", userID)

	if err := o.pushDeletes(ctx, userID, &sum); err != nil {
		log.Warn("sync: collection delete push failed", "err", err)
		sum.FailedPhases = append(sum.FailedPhases, "deletes")
	}
	if err := o.syncAttempts(ctx, userID, &sum); err != nil {
		log.Warn("sync: attempts sync failed", "err", err)
		sum.FailedPhases = append(sum.FailedPhases, "attempts")
	}
	if err := o.syncCollections(ctx, userID, &sum); err != nil {
		log.Warn("sync: collections sync failed", "err", err)
		sum.FailedPhases = append(sum.FailedPhases, "collections")
	}

	res := Result{OK: len(sum.FailedPhases) == 0, Summary: sum, Message: sum.Line()}
	if !res.OK {
		res.Message = fmt.Sprintf("Sync failed (%s) • %s", strings.Join(sum.FailedPhases, ", "), sum.Line())
	}

	at := o.now()
	o.local.UpdateSyncMeta(userID, func(m *models.SyncMeta) {
		m.LastSyncAt = at
		m.LastSyncOK = res.OK
	})
	o.local.Publish(events.Event{Reason: events.ReasonSync, Payload: res})

	log.Debug("sync: cycle done", "ok", res.OK, "summary", res.Message)
	return res
}

// pushDeletes sends pending tombstones. They are cleared only after the
// remote delete succeeds, so a failure retries them next cycle.
func (o *Orchestrator) pushDeletes(ctx context.Context, userID string, sum *Summary) error {
	tombs := o.local.Tombstones()
	if len(tombs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(tombs))
	for _, t := range tombs {
		ids = append(ids, t.ID)
	}

	if _, err := o.remote.DeleteCollections(ctx, userID, ids); err != nil {
		return fmt.Errorf("delete collections: %w", err)
	}
	o.local.ClearTombstones(ids)
	sum.DeletedCollections = len(ids)
	o.local.UpdateSyncMeta(userID, func(m *models.SyncMeta) {
		m.LastCollectionsDeleteCount = len(ids)
	})
	return nil
}

func (o *Orchestrator) fetchAllAttempts(ctx context.Context, userID string) ([]models.Attempt, error) {
	var out []models.Attempt
	// The server may cap the page below pageSize, so only an empty page
	// ends the walk.
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := o.remote.FetchAttempts(ctx, userID, offset, o.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch attempts at %d: %w", offset, err)
		}
		if len(page) == 0 {
			return out, nil
		}
		out = append(out, page...)
		offset += len(page)
	}
}

func (o *Orchestrator) syncAttempts(ctx context.Context, userID string, sum *Summary) error {
	remote, err := o.fetchAllAttempts(ctx, userID)
	if err != nil {
		return err
	}
	sum.RemoteAttempts = len(remote)
	sum.Merge = o.local.MergeAttempts(remote)
	pulledAt := o.now()
	o.local.UpdateSyncMeta(userID, func(m *models.SyncMeta) {
		m.LastPullAt = pulledAt
		m.LastPullCount = len(remote)
	})

	// Candidates come from the current state so attempts recorded while the
	// pull was in flight are pushed too.
	remoteIDs := make([]string, 0, len(remote))
	for _, a := range remote {
		remoteIDs = append(remoteIDs, a.ID)
	}
	toPush := o.local.AttemptsMissingFrom(remoteIDs)
	if len(toPush) > 0 {
		if _, err := o.remote.UpsertAttempts(ctx, userID, toPush); err != nil {
			return fmt.Errorf("push attempts: %w", err)
		}
		sum.PushedAttempts = len(toPush)
	}

	pushedAt := o.now()
	o.local.UpdateSyncMeta(userID, func(m *models.SyncMeta) {
		m.LastPushAt = pushedAt
		m.LastPushCount = sum.PushedAttempts
	})
	return nil
}

func (o *Orchestrator) syncCollections(ctx context.Context, userID string, sum *Summary) error {
	remote, err := o.remote.FetchCollections(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch collections: %w", err)
	}
	sum.PulledCollections = len(remote)
	sum.MergedCollections = o.local.MergeCollections(remote)

	toPush := o.local.CollectionsDiffering(remote)
	if len(toPush) > 0 {
		if _, err := o.remote.UpsertCollections(ctx, userID, toPush); err != nil {
			return fmt.Errorf("push collections: %w", err)
		}
		sum.PushedCollections = len(toPush)
	}

	o.local.UpdateSyncMeta(userID, func(m *models.SyncMeta) {
		m.LastCollectionsPullCount = sum.PulledCollections
		m.LastCollectionsPushCount = sum.PushedCollections
	})
	return nil
}
