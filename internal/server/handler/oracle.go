package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// maxAskBytes bounds the request body accepted by the ask endpoint.
const maxAskBytes = 8 << 10

// Oracle is the orchestrator surface the HTTP layer depends on.
type Oracle interface {
	Running() bool
	VerifyMarket(ctx context.Context, marketID string) (domain.Verdict, error)
}

// ResolverStatus exposes the social poller's tracking state.
type ResolverStatus interface {
	Tracked() int
	Status() []domain.SocialMarketStatus
}

// Asker answers free-form questions about recent verification activity.
type Asker interface {
	Ask(ctx context.Context, message string) string
}

// OracleHandler serves the oracle control and query endpoints.
type OracleHandler struct {
	oracle   Oracle
	resolver ResolverStatus
	asker    Asker
	logger   *slog.Logger
}

// NewOracleHandler creates an OracleHandler over the running oracle.
func NewOracleHandler(oracle Oracle, resolver ResolverStatus, asker Asker, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		oracle:   oracle,
		resolver: resolver,
		asker:    asker,
		logger:   logger.With(slog.String("handler", "oracle")),
	}
}

// GetStatus reports whether the oracle loops are running and how many social
// markets are being tracked.
// GET /api/oracle/status
func (h *OracleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":         h.oracle.Running(),
		"tracked_markets": h.resolver.Tracked(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// GetResolver lists every social market currently tracked by the resolution
// poller with its next due time.
// GET /api/oracle/resolver
func (h *OracleHandler) GetResolver(w http.ResponseWriter, r *http.Request) {
	status := h.resolver.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"tracked": status,
		"count":   len(status),
	})
}

// VerifyMarket runs the full validation pipeline on a single market,
// immediately and synchronously.
// POST /api/oracle/verify/{id}
func (h *OracleHandler) VerifyMarket(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	verdict, err := h.oracle.VerifyMarket(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "manual verification failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "verification failed")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// Ask answers a free-form question with the recent dashboard as context.
// POST /api/oracle/ask
func (h *OracleHandler) Ask(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAskBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	answer := h.asker.Ask(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}
