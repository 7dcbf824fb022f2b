package handler

import (
	"log/slog"
	"net/http"

	"github.com/djinn-protocol/cerberus/internal/dashboard"
	"github.com/djinn-protocol/cerberus/internal/domain"
)

// DashboardHandler serves read-only views of the verification dashboard.
type DashboardHandler struct {
	store  *dashboard.Store
	logger *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler backed by the given store.
func NewDashboardHandler(store *dashboard.Store, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "dashboard")),
	}
}

// GetState returns the full dashboard snapshot: markets newest-first plus
// aggregate stats.
// GET /api/dashboard
func (h *DashboardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

// GetMarket returns the dashboard entry for a single market.
// GET /api/dashboard/markets/{id}
func (h *DashboardHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListVerdicts returns the most recent finalized verdicts, newest first.
// GET /api/verdicts/recent?limit=N
func (h *DashboardHandler) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 200)

	verdicts := make([]*domain.Verdict, 0, limit)
	for _, m := range h.store.Snapshot().Markets {
		if m.Verdict == nil {
			continue
		}
		verdicts = append(verdicts, m.Verdict)
		if len(verdicts) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verdicts": verdicts,
		"count":    len(verdicts),
	})
}
