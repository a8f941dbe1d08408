package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/menu"
)

const (
	defaultDaysLimit = 30
	maxDaysLimit     = 365
	historyTimeout   = 3 * time.Second
)

// HistoryHandler exposes read-only archived snapshot endpoints.
type HistoryHandler struct {
	store   menu.HistoryStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewHistoryHandler wires the history store and logger.
func NewHistoryHandler(store menu.HistoryStore, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		store:   store,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListDays handles GET /v1/menu/history?limit=&offset=. It returns a JSON
// object {"days": [...]} newest first, 400 for invalid pagination, 503 when
// no history store is configured, or 500 if the store call fails.
func (h *HistoryHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "menu history unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultDaysLimit, maxDaysLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	days, err := h.store.Days(ctx, limit, offset)
	if err != nil {
		h.logger.Error("list archived days failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list archived days")
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// GetDay handles GET /v1/menu/history/{date}. It returns the archived
// snapshot on success, 400 for malformed dates, 404 when the store reports
// menu.ErrNotFound, 503 if no history store is configured, or 500 otherwise.
func (h *HistoryHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "menu history unavailable")
		return
	}
	day, err := parseDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.store.ByDate(ctx, day)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no menu archived for that day")
			return
		}
		h.logger.Error("load archived menu failed", zap.String("day", day), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load archived menu")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func parseDate(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "date")
	if raw == "" {
		return "", errors.New("date is required")
	}
	if _, err := time.Parse(time.DateOnly, raw); err != nil {
		return "", errors.New("invalid date, expected YYYY-MM-DD")
	}
	return raw, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
