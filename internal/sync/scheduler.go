package sync

import (
	"time"

	"github.com/marcus/pratica/internal/events"
)

const (
	// DefaultDebounce is the quiet period after a local change before the
	// triggered sync runs.
	DefaultDebounce = 5 * time.Second
	// DefaultInterval is the period of StartAuto when none is given.
	DefaultInterval = 60 * time.Second
)

// NotifyChanged schedules a sync after the debounce delay. Calls within the
// delay restart it, so a burst of changes produces one sync. Nothing is
// scheduled when nobody is signed in.
func (o *Orchestrator) NotifyChanged() {
	if o.auth == nil || o.auth.UserID() == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, o.runDebounced)
}

func (o *Orchestrator) runDebounced() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	defer o.wg.Done()
	o.SyncAll(o.ctx)
}

// HandleEvent is a bus handler that turns local changes into debounced
// syncs. Sync bookkeeping and merges of remote data are ignored.
func (o *Orchestrator) HandleEvent(ev events.Event) {
	if ev.TriggersSync() {
		o.NotifyChanged()
	}
}

// Watch subscribes the orchestrator to bus and returns the unsubscribe func.
func (o *Orchestrator) Watch(bus *events.Bus) func() {
	return bus.Subscribe(o.HandleEvent)
}

// StartAuto syncs every interval until StopAuto or Close. A running timer
// is replaced.
func (o *Orchestrator) StartAuto(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	o.StopAuto()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	stop := make(chan struct{})
	o.stopAuto = stop
	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-o.ctx.Done():
				return
			case <-ticker.C:
				o.SyncAll(o.ctx)
			}
		}
	}()
}

// StopAuto stops the interval timer started by StartAuto.
func (o *Orchestrator) StopAuto() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopAuto != nil {
		close(o.stopAuto)
		o.stopAuto = nil
	}
}

// AutoRunning reports whether the interval timer is active.
func (o *Orchestrator) AutoRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopAuto != nil
}

// Close stops the interval timer and any pending debounced sync, cancels a
// sync in flight and waits for background work to exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.stopAuto != nil {
		close(o.stopAuto)
		o.stopAuto = nil
	}
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}
