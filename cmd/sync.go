package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/pratica/internal/events"
	"github.com/marcus/pratica/internal/output"
	pratsync "github.com/marcus/pratica/internal/sync"
	"github.com/marcus/pratica/internal/syncconfig"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Reconcile local progress with the sync server",
	GroupID: "sync",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Error("not logged in. Run: pratica login")
			return errNotAuthenticated
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		// This run already syncs; the exit hook need not repeat it.
		a.changed = false
		res := a.sync.SyncAll(ctx)
		if jsonFlag {
			return output.JSON(res)
		}
		if !res.OK {
			output.Error("%s", res.Message)
			return fmt.Errorf("%w: %s", errSyncFailed, res.Message)
		}
		output.Success("%s", res.Message)
		return nil
	}),
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last sync for the signed-in user",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		userID := syncconfig.GetUserID()
		if jsonFlag {
			return output.JSON(map[string]any{
				"authenticated": userID != "",
				"server":        syncconfig.GetServerURL(),
				"autoSync":      syncconfig.GetAutoSyncEnabled(),
				"meta":          a.store.AllSyncMeta(),
			})
		}
		fmt.Printf("Server:    %s\n", syncconfig.GetServerURL())
		fmt.Printf("Auto-sync: %v (debounce %s, interval %s)\n",
			syncconfig.GetAutoSyncEnabled(), syncconfig.GetAutoSyncDebounce(), syncconfig.GetAutoSyncInterval())
		if userID == "" {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("User:      %s\n\n", userID)
		fmt.Println(output.FormatSyncMeta(a.store.SyncMeta(userID)))
		return nil
	}),
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep syncing on an interval until interrupted",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Error("not logged in. Run: pratica login")
			return errNotAuthenticated
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = syncconfig.GetAutoSyncInterval()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		unsub := a.bus.Subscribe(func(ev events.Event) {
			if ev.Reason != events.ReasonSync {
				return
			}
			if res, ok := ev.Payload.(pratsync.Result); ok {
				ts := time.Now().Format("15:04:05")
				if res.OK {
					fmt.Printf("%s %s\n", ts, res.Message)
				} else {
					output.Warning("%s %s", ts, res.Message)
				}
			}
		})
		defer unsub()

		a.changed = false
		a.sync.StartAuto(interval)
		output.Info("syncing every %s, Ctrl-C to stop", interval)
		<-ctx.Done()
		a.sync.StopAuto()
		return nil
	}),
}

func init() {
	syncCmd.Flags().Duration("timeout", 30*time.Second, "give up after this long")
	syncWatchCmd.Flags().Duration("interval", 0, "sync interval (default from sync config)")
	syncCmd.AddCommand(syncStatusCmd, syncWatchCmd)
	rootCmd.AddCommand(syncCmd)
}
