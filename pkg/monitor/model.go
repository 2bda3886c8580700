// Package monitor is a live terminal dashboard of practice progress and sync
// state.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/models"
	pratsync "github.com/marcus/pratica/internal/sync"
)

const (
	defaultInterval = 2 * time.Second
	syncTimeout     = 30 * time.Second
	recentCount     = 20
	eventBuffer     = 32
)

// Source is the read side of the progress store.
type Source interface {
	Stats(recentN int) models.Stats
	SyncMeta(userKey string) models.SyncMeta
}

// Syncer runs one sync cycle.
type Syncer interface {
	SyncAll(ctx context.Context) pratsync.Result
}

// Options configures a Model.
type Options struct {
	Source   Source
	Syncer   Syncer      // nil disables manual sync
	Bus      *events.Bus // store changes and sync results arrive here
	UserID   string      // "" when not logged in
	Interval time.Duration
	Version  string
}

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	src      Source
	syncer   Syncer
	userID   string
	interval time.Duration
	version  string
	events   chan events.Event
	unsub    func()

	Width  int
	Height int

	Stats       models.Stats
	Meta        models.SyncMeta
	LastRefresh time.Time
	ActivePanel Panel
	Syncing     bool
	LastSync    *pratsync.Result

	categories table.Model
	recent     table.Model
	spinner    spinner.Model
	help       help.Model
	keys       keyMap
}

// New builds a dashboard. Call Close when the program exits to drop the bus
// subscription.
func New(opts Options) Model {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	m := Model{
		src:        opts.Source,
		syncer:     opts.Syncer,
		userID:     opts.UserID,
		interval:   interval,
		version:    opts.Version,
		categories: newTable(categoryColumns(), true),
		recent:     newTable(recentColumns(), false),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
		keys:       defaultKeys(),
	}
	if opts.Bus != nil {
		ch := make(chan events.Event, eventBuffer)
		m.events = ch
		m.unsub = opts.Bus.Subscribe(func(ev events.Event) {
			select {
			case ch <- ev:
			default:
				// A refresh is already queued.
			}
		})
	}
	return m
}

// Close drops the bus subscription.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

func newTable(cols []table.Column, focused bool) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithHeight(8),
		table.WithFocused(focused),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).Foreground(primaryColor)
	t.SetStyles(s)
	return t
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchData(), m.scheduleTick(), m.waitForEvent())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Stats, m.Meta, m.LastRefresh = msg.Stats, msg.Meta, msg.At
		m.categories.SetRows(categoryRows(m.Stats))
		m.recent.SetRows(recentRows(m.Stats.RecentAttempts, msg.At))
		return m, nil

	case StoreEventMsg:
		ev := events.Event(msg)
		if res, ok := ev.Payload.(pratsync.Result); ok && ev.Reason == events.ReasonSync {
			m.LastSync = &res
		}
		return m, tea.Batch(m.fetchData(), m.waitForEvent())

	case SyncStartedMsg:
		m.Syncing = true
		return m, m.spinner.Tick

	case SyncDoneMsg:
		res := pratsync.Result(msg)
		m.Syncing = false
		m.LastSync = &res
		return m, m.fetchData()

	case spinner.TickMsg:
		if !m.Syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.NextPanel):
		m.switchPanel()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchData()
	case key.Matches(msg, m.keys.Sync):
		if m.syncer == nil || m.userID == "" || m.Syncing {
			return m, nil
		}
		m.Syncing = true
		return m, tea.Batch(m.spinner.Tick, m.runSync())
	}

	var cmd tea.Cmd
	if m.ActivePanel == PanelRecent {
		m.recent, cmd = m.recent.Update(msg)
	} else {
		m.categories, cmd = m.categories.Update(msg)
	}
	return m, cmd
}

func (m *Model) switchPanel() {
	if m.ActivePanel == PanelCategories {
		m.ActivePanel = PanelRecent
		m.categories.Blur()
		m.recent.Focus()
		return
	}
	m.ActivePanel = PanelCategories
	m.recent.Blur()
	m.categories.Focus()
}

func (m *Model) resize() {
	h := max(m.Height-12, 4)
	m.categories.SetHeight(h)
	m.recent.SetHeight(h)
	m.help.Width = m.Width
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) fetchData() tea.Cmd {
	src, user := m.src, m.userID
	return func() tea.Msg {
		msg := RefreshDataMsg{At: time.Now()}
		if src == nil {
			return msg
		}
		msg.Stats = src.Stats(recentCount)
		if user != "" {
			msg.Meta = src.SyncMeta(user)
		}
		return msg
	}
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return StoreEventMsg(ev)
	}
}

func (m Model) runSync() tea.Cmd {
	syncer := m.syncer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		return SyncDoneMsg(syncer.SyncAll(ctx))
	}
}
