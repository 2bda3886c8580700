package cmd

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/config"
	"github.com/marcus/pratica/internal/db"
	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/store"
	pratsync "github.com/marcus/pratica/internal/sync"
	"github.com/marcus/pratica/internal/syncclient"
	"github.com/marcus/pratica/internal/syncconfig"
	"github.com/spf13/cobra"
)

// autoSyncTimeout bounds the sync a mutating command runs on exit.
const autoSyncTimeout = 5 * time.Second

// app is the composition root of one command invocation.
type app struct {
	baseDir string
	db      *db.DB
	bus     *events.Bus
	store   *store.Store
	sync    *pratsync.Orchestrator
	changed bool
	unsub   func()
}

// openApp opens the workspace store and wires the sync orchestrator to it.
func openApp() (*app, error) {
	dir := getBaseDir()
	database, err := db.Open(dir)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	st := store.New(database, bus, store.WithLogger(slog.Default()))
	a := &app{
		baseDir: dir,
		db:      database,
		bus:     bus,
		store:   st,
		sync:    newOrchestrator(st, 0),
	}
	a.unsub = bus.Subscribe(func(ev events.Event) {
		if ev.TriggersSync() {
			a.changed = true
		}
	})
	return a, nil
}

func newOrchestrator(local *store.Store, httpTimeout time.Duration) *pratsync.Orchestrator {
	client := syncclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey())
	if httpTimeout > 0 {
		client.HTTP.Timeout = httpTimeout
	}
	return pratsync.New(local, client, pratsync.AuthFunc(syncconfig.GetUserID),
		pratsync.WithDebounce(syncconfig.GetAutoSyncDebounce()),
		pratsync.WithLogger(slog.Default()),
	)
}

// Close runs a short sync when the command changed local data and auto-sync
// is on, then releases everything. Sync errors are logged, not returned.
func (a *app) Close() error {
	if a.changed && syncconfig.GetAutoSyncEnabled() && syncconfig.IsAuthenticated() {
		ctx, cancel := context.WithTimeout(context.Background(), autoSyncTimeout)
		res := a.sync.SyncAll(ctx)
		cancel()
		slog.Debug("autosync", "ok", res.OK, "summary", res.Message)
	}
	a.sync.Close()
	a.unsub()
	return a.db.Close()
}

// withApp opens the workspace around a command body.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

// loadBank reads the workspace's question bank file.
func loadBank(dir string) ([]bank.Question, error) {
	path, err := config.GetQuestionBank(dir)
	if err != nil {
		return nil, err
	}
	return bank.Load(path)
}

func newRand() *rand.Rand {
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, now>>7|1))
}
