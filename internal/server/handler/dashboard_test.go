package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/djinn-protocol/cerberus/internal/dashboard"
	"github.com/djinn-protocol/cerberus/internal/domain"
)

func seededStore(t *testing.T, n int) *dashboard.Store {
	t.Helper()
	store := dashboard.NewStore()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("mkt-%d", i)
		store.Upsert(domain.DashboardMarket{
			Market:             domain.Market{ID: id, Title: "market " + id},
			VerificationStatus: domain.StatusVerified,
			Verdict: &domain.Verdict{
				MarketID:    id,
				FinalStatus: domain.FinalVerified,
			},
		})
	}
	return store
}

func TestGetState(t *testing.T) {
	h := NewDashboardHandler(seededStore(t, 2), discard())

	rec := httptest.NewRecorder()
	h.GetState(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var state domain.DashboardState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Len(t, state.Markets, 2)
	require.Equal(t, 2, state.Stats.Verified)
	// Newest first.
	require.Equal(t, "mkt-1", state.Markets[0].ID)
}

func TestGetMarket(t *testing.T) {
	h := NewDashboardHandler(seededStore(t, 1), discard())

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/markets/mkt-0", nil)
		req.SetPathValue("id", "mkt-0")
		rec := httptest.NewRecorder()
		h.GetMarket(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var m domain.DashboardMarket
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
		require.Equal(t, "mkt-0", m.ID)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/markets/ghost", nil)
		req.SetPathValue("id", "ghost")
		rec := httptest.NewRecorder()
		h.GetMarket(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListVerdicts(t *testing.T) {
	h := NewDashboardHandler(seededStore(t, 30), discard())

	t.Run("default limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListVerdicts(rec, httptest.NewRequest(http.MethodGet, "/api/verdicts/recent", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, float64(20), decodeBody(t, rec)["count"])
	})

	t.Run("explicit limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListVerdicts(rec, httptest.NewRequest(http.MethodGet, "/api/verdicts/recent?limit=5", nil))

		require.Equal(t, float64(5), decodeBody(t, rec)["count"])
	})

	t.Run("limit capped", func(t *testing.T) {
		store := seededStore(t, 30)
		// Markets without a verdict are skipped, not counted.
		store.Upsert(domain.DashboardMarket{
			Market:             domain.Market{ID: "pending-1"},
			VerificationStatus: domain.StatusPendingVerification,
		})
		h := NewDashboardHandler(store, discard())

		rec := httptest.NewRecorder()
		h.ListVerdicts(rec, httptest.NewRequest(http.MethodGet, "/api/verdicts/recent?limit=9999", nil))

		require.Equal(t, float64(30), decodeBody(t, rec)["count"])
	})
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(time.Now().Add(-90 * time.Second))

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "cerberus-oracle", body["service"])
	require.GreaterOrEqual(t, body["uptime_seconds"], float64(90))
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=500", 200},
		{"?limit=0", 20},
		{"?limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		require.Equal(t, tt.want, parseLimit(r, 20, 200), "query %q", tt.query)
	}
}
