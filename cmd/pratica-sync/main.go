// Command pratica-sync is the reference remote for pratica: it stores each
// user's attempts and collections behind API keys.
//
//	pratica-sync                 serve (configured by SYNC_* environment variables)
//	pratica-sync admin <cmd>     manage users and keys
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marcus/pratica/internal/api"
	"github.com/marcus/pratica/internal/serverdb"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		runAdmin(os.Args[2:])
		return
	}
	if err := run(); err != nil {
		slog.Error("pratica-sync", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := api.LoadConfig()
	slog.SetDefault(newLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel))

	store, err := serverdb.Open(cfg.ServerDBPath)
	if err != nil {
		return fmt.Errorf("open server db: %w", err)
	}
	defer store.Close()

	srv, err := api.NewServer(cfg, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		return err
	}
	slog.Info("listening", "addr", cfg.ListenAddr, "db", cfg.ServerDBPath, "schema", store.SchemaVersion())

	<-ctx.Done()
	slog.Info("signal received, draining", "timeout", cfg.ShutdownTimeout)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(drainCtx)
}

// newLogger builds the process logger. Unknown levels fall back to info and
// anything but "text" gets the JSON handler.
func newLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
