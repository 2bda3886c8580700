package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// principal is the owner of the API key a request authenticated with.
type principal struct {
	UserID string
	Email  string
	KeyID  string
}

// reqState is the per-request value the middleware stack shares with
// handlers. It is created by observe; guard fills in who.
type reqState struct {
	id  string
	log *slog.Logger
	who *principal
}

type stateKey struct{}

func stateOf(ctx context.Context) *reqState {
	st, _ := ctx.Value(stateKey{}).(*reqState)
	return st
}

func principalOf(ctx context.Context) *principal {
	if st := stateOf(ctx); st != nil {
		return st.who
	}
	return nil
}

func reqLogger(ctx context.Context) *slog.Logger {
	if st := stateOf(ctx); st != nil {
		return st.log
	}
	return slog.Default()
}

func newRequestID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}

type recorder struct {
	http.ResponseWriter
	status int
}

func (rec *recorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// observe tags the request with an id (reusing a short inbound X-Request-ID),
// then logs and counts it once it finishes.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		st := &reqState{id: id, log: slog.Default().With("rid", id)}

		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), stateKey{}, st)))
		dur := time.Since(start)

		s.metrics.RecordRequest(r.Method, rec.status, dur)
		st.log.Info("req", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", dur.String())
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				reqLogger(r.Context()).Error("panic recovered", "panic", v, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// wrap applies middleware outermost first.
func wrap(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// bearer returns the token of an "Authorization: Bearer" header.
func bearer(r *http.Request) (string, string) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", "missing authorization header"
	}
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || tok == "" {
		return "", "invalid authorization format"
	}
	return tok, ""
}

// route options for guard.
type access struct {
	class rateClass
	owner bool // reject a user_id query naming someone else
}

// guard authenticates the API key, enforces ownership of user_id, then
// applies the per-key rate limit for the route's class.
func (s *Server) guard(a access, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, problem := bearer(r)
		if problem != "" {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, problem)
			return
		}
		key, user, err := s.store.VerifyAPIKey(tok)
		if err != nil {
			reqLogger(r.Context()).Error("verify api key", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to verify key")
			return
		}
		if key == nil || user == nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired api key")
			return
		}

		who := &principal{UserID: user.ID, Email: user.Email, KeyID: key.ID}
		if st := stateOf(r.Context()); st != nil {
			st.who = who
			st.log = st.log.With("uid", who.UserID)
		}

		if a.owner {
			if uid := r.URL.Query().Get("user_id"); uid != "" && uid != who.UserID {
				writeError(w, http.StatusForbidden, ErrCodeForbidden, "user_id does not match api key")
				return
			}
		}

		if !s.rateLimiter.Allow(who.KeyID+"/"+string(a.class), s.config.limitFor(a.class)) {
			if err := s.store.InsertRateLimitEvent(who.KeyID, clientIP(r), string(a.class)); err != nil {
				reqLogger(r.Context()).Error("log rate limit event", "err", err)
			}
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		h(w, r)
	}
}
