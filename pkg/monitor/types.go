package monitor

import (
	"time"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
	pratsync "github.com/marcus/pratica/internal/sync"
)

// Panel identifies a dashboard table.
type Panel int

const (
	PanelCategories Panel = iota
	PanelRecent
)

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	Stats models.Stats
	Meta  models.SyncMeta
	At    time.Time
}

// StoreEventMsg forwards a store bus event into the program.
type StoreEventMsg events.Event

// SyncStartedMsg is sent when a manual sync begins.
type SyncStartedMsg struct{}

// SyncDoneMsg carries the result of a sync cycle, manual or background.
type SyncDoneMsg pratsync.Result
