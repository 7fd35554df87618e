package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tutorgrid/internal/config"
	"tutorgrid/internal/jobs"
	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/observability"
	"tutorgrid/internal/timetable"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the timetable over HTTP: grid reads, repositioning,
// occurrence expansion and the iCalendar feed.
type Server struct {
	cfg   *config.Config
	store *timetable.Store
	job   *jobs.ExportJob
	tel   *observability.Telemetry
	now   func() time.Time
}

// NewServer constructs a Server. job and tel may be nil.
func NewServer(cfg *config.Config, store *timetable.Store, job *jobs.ExportJob, tel *observability.Telemetry) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		job:   job,
		tel:   tel,
		now:   time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tel.Middleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}

		r.Get("/metrics", s.tel.Handler().ServeHTTP)
		r.Get("/calendar.ics", s.handleCalendar)

		r.Route("/api", func(r chi.Router) {
			r.Get("/sessions", s.handleSessions)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
			r.Post("/reposition", s.handleReposition)
			r.Get("/occurrences", s.handleOccurrences)
			r.Get("/export", s.handleExportStatus)
			r.Post("/export", s.handleExportRun)
		})
	})

	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tutorgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
