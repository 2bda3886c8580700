package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/pratica/internal/serverdb"
)

// Server serves the pratica sync API over a ServerDB.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewServer builds a server; it does not listen until Start.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	if store == nil {
		return nil, errors.New("api: nil store")
	}
	def := DefaultConfig()
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens on the configured address and returns; serving and the
// hourly rate-limit event pruning run in the background until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http serve", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pruneLoop(ctx, time.Hour)
	return nil
}

func (s *Server) pruneLoop(ctx context.Context, every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.pruneRateLimitEvents()
		}
	}
}

func (s *Server) pruneRateLimitEvents() {
	n, err := s.store.CleanupRateLimitEvents(s.config.RateLimitEventRetention)
	switch {
	case err != nil:
		slog.Error("prune rate limit events", "err", err)
	case n > 0:
		slog.Info("pruned rate limit events", "count", n, "retention", s.config.RateLimitEventRetention)
	}
}

// Shutdown stops background work, then drains in-flight requests until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.rateLimiter.Stop()
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)
	mux.Handle("GET /metrics", s.metrics.Handler())

	me := access{class: classOther}
	pull := access{class: classPull, owner: true}
	push := access{class: classPush, owner: true}

	mux.HandleFunc("GET /v1/me", s.guard(me, s.handleMe))
	mux.HandleFunc("GET /v1/attempts", s.guard(pull, s.handleListAttempts))
	mux.HandleFunc("POST /v1/attempts", s.guard(push, s.handlePushAttempts))
	mux.HandleFunc("GET /v1/collections", s.guard(pull, s.handleListCollections))
	mux.HandleFunc("POST /v1/collections", s.guard(push, s.handlePushCollections))
	mux.HandleFunc("DELETE /v1/collections", s.guard(push, s.handleDeleteCollections))

	return wrap(mux, s.observe, recoverPanics, limitBody(10<<20))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type metriczResponse struct {
	MetricsSnapshot
	Totals *serverdb.Totals `json:"totals,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := metriczResponse{MetricsSnapshot: s.metrics.Snapshot()}
	if t, err := s.store.CountTotals(); err != nil {
		reqLogger(r.Context()).Warn("count totals", "err", err)
	} else {
		resp.Totals = &t
	}
	writeJSON(w, http.StatusOK, resp)
}
