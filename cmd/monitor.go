package cmd

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/syncconfig"
	"github.com/marcus/pratica/pkg/monitor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"dash"},
	Short:   "Live dashboard of progress and sync",
	Long: `Shows totals, per-category accuracy and recent attempts, refreshing as
data changes. While it runs, local changes are synced after the debounce
and a full sync runs on the auto-sync interval.`,
	GroupID: "progress",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		userID := syncconfig.GetUserID()

		ctx, cancel := context.WithCancel(cmd.Context())
		var bg sync.WaitGroup
		defer bg.Wait()
		defer cancel()

		if userID != "" && syncconfig.GetAutoSyncEnabled() {
			stopWatch := a.sync.Watch(a.bus)
			defer stopWatch()
			a.sync.StartAuto(syncconfig.GetAutoSyncInterval())
			if syncconfig.GetAutoSyncOnStart() {
				bg.Add(1)
				go func() {
					defer bg.Done()
					a.sync.SyncAll(ctx)
				}()
			}
		}
		// Syncs already ran in the background.
		defer func() { a.changed = false }()

		m := monitor.New(monitor.Options{
			Source:   a.store,
			Syncer:   a.sync,
			Bus:      a.bus,
			UserID:   userID,
			Interval: interval,
			Version:  version,
		})
		defer m.Close()

		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			output.Error("monitor: %v", err)
			return err
		}
		return nil
	}),
}

func init() {
	monitorCmd.Flags().Duration("interval", 0, "refresh interval (default 2s)")
	rootCmd.AddCommand(monitorCmd)
}
