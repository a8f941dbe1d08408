package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/config"
	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/metrics"
)

// Refresher accepts requests for an immediate menu refresh.
type Refresher interface {
	Trigger() bool
}

// Server wires HTTP handlers to the snapshot store and refresher.
type Server struct {
	router    chi.Router
	snapshots menu.SnapshotStore
	refresher Refresher
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The history store
// may be nil when snapshot archival is disabled.
func NewServer(
	snapshots menu.SnapshotStore,
	history menu.HistoryStore,
	refresher Refresher,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		snapshots: snapshots,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
	}
	historyHandler := NewHistoryHandler(history, logger)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/menu", func(r chi.Router) {
			r.Get("/", s.getMenu)
			r.Get("/categories", s.getCategories)
			r.Get("/stats", s.getStats)
			r.Route("/history", func(r chi.Router) {
				r.Get("/", historyHandler.ListDays)
				r.Get("/{date}", historyHandler.GetDay)
			})
		})
		r.Post("/refresh", s.triggerRefresh)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.snapshots.Latest(r.Context()); err != nil && !errors.Is(err, menu.ErrNoSnapshot) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getMenu(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getCategories(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories:     menu.GroupByCategory(snap.Items),
		FetchedAt:      snap.FetchedAt,
		SourceStrategy: snap.SourceStrategy,
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	resp := statsResponse{
		Items:          len(snap.Items),
		Categories:     map[string]int{},
		FetchedAt:      snap.FetchedAt,
		SourceStrategy: snap.SourceStrategy,
	}
	for _, group := range menu.GroupByCategory(snap.Items) {
		resp.Categories[string(group.Category)] = len(group.Items)
	}
	if prices, ok := menu.Stats(snap.Items); ok {
		resp.Prices = &prices
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) triggerRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresher unavailable")
		return
	}
	status := "queued"
	if !s.refresher.Trigger() {
		// A refresh is already waiting; the caller's request rides along.
		status = "pending"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) (menu.Snapshot, bool) {
	snap, err := s.snapshots.Latest(r.Context())
	if err != nil {
		if errors.Is(err, menu.ErrNoSnapshot) {
			writeError(w, http.StatusNotFound, "no menu snapshot yet")
			return menu.Snapshot{}, false
		}
		s.logger.Error("load snapshot failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return menu.Snapshot{}, false
	}
	return snap, true
}

type categoriesResponse struct {
	Categories     []menu.CategoryGroup `json:"categories"`
	FetchedAt      time.Time            `json:"fetchedAt"`
	SourceStrategy menu.Strategy        `json:"sourceStrategy"`
}

type statsResponse struct {
	Items          int              `json:"items"`
	Categories     map[string]int   `json:"categories"`
	Prices         *menu.PriceStats `json:"prices,omitempty"`
	FetchedAt      time.Time        `json:"fetchedAt"`
	SourceStrategy menu.Strategy    `json:"sourceStrategy"`
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
