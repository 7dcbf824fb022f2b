package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

type fakeOracle struct {
	running    bool
	verdict    domain.Verdict
	verifyErr  error
	verifiedID string
}

func (f *fakeOracle) Running() bool { return f.running }

func (f *fakeOracle) VerifyMarket(ctx context.Context, marketID string) (domain.Verdict, error) {
	f.verifiedID = marketID
	return f.verdict, f.verifyErr
}

type fakeResolver struct {
	status []domain.SocialMarketStatus
}

func (f *fakeResolver) Tracked() int                        { return len(f.status) }
func (f *fakeResolver) Status() []domain.SocialMarketStatus { return f.status }

type fakeAsker struct {
	answer  string
	lastMsg string
}

func (f *fakeAsker) Ask(ctx context.Context, message string) string {
	f.lastMsg = message
	return f.answer
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetStatus(t *testing.T) {
	h := NewOracleHandler(&fakeOracle{running: true}, &fakeResolver{
		status: make([]domain.SocialMarketStatus, 3),
	}, &fakeAsker{}, discard())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/oracle/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	require.Equal(t, true, body["running"])
	require.Equal(t, float64(3), body["tracked_markets"])
	require.NotEmpty(t, body["timestamp"])
}

func TestGetResolver(t *testing.T) {
	h := NewOracleHandler(&fakeOracle{}, &fakeResolver{
		status: []domain.SocialMarketStatus{{MarketID: "soc-1"}},
	}, &fakeAsker{}, discard())

	rec := httptest.NewRecorder()
	h.GetResolver(rec, httptest.NewRequest(http.MethodGet, "/api/oracle/resolver", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, float64(1), body["count"])
}

func verifyRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/oracle/verify/"+url.PathEscape(id), nil)
	req.SetPathValue("id", id)
	return req
}

func TestVerifyMarket(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		oracle := &fakeOracle{verdict: domain.Verdict{
			MarketID:    "mkt-1",
			FinalStatus: domain.FinalVerified,
		}}
		h := NewOracleHandler(oracle, &fakeResolver{}, &fakeAsker{}, discard())

		rec := httptest.NewRecorder()
		h.VerifyMarket(rec, verifyRequest("mkt-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "mkt-1", oracle.verifiedID)
		var verdict domain.Verdict
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
		require.Equal(t, domain.FinalVerified, verdict.FinalStatus)
	})

	t.Run("unknown market", func(t *testing.T) {
		oracle := &fakeOracle{verifyErr: domain.ErrNotFound}
		h := NewOracleHandler(oracle, &fakeResolver{}, &fakeAsker{}, discard())

		rec := httptest.NewRecorder()
		h.VerifyMarket(rec, verifyRequest("ghost"))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("registry outage", func(t *testing.T) {
		oracle := &fakeOracle{verifyErr: errors.New("connection refused")}
		h := NewOracleHandler(oracle, &fakeResolver{}, &fakeAsker{}, discard())

		rec := httptest.NewRecorder()
		h.VerifyMarket(rec, verifyRequest("mkt-1"))

		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		h := NewOracleHandler(&fakeOracle{}, &fakeResolver{}, &fakeAsker{}, discard())

		rec := httptest.NewRecorder()
		h.VerifyMarket(rec, verifyRequest(" "))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAsk(t *testing.T) {
	t.Run("answers", func(t *testing.T) {
		asker := &fakeAsker{answer: "All signs point to yes."}
		h := NewOracleHandler(&fakeOracle{}, &fakeResolver{}, asker, discard())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/oracle/ask",
			strings.NewReader(`{"message":"will it resolve?"}`))
		h.Ask(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "will it resolve?", asker.lastMsg)
		require.Equal(t, "All signs point to yes.", decodeBody(t, rec)["response"])
	})

	t.Run("rejects empty message", func(t *testing.T) {
		h := NewOracleHandler(&fakeOracle{}, &fakeResolver{}, &fakeAsker{}, discard())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/oracle/ask",
			strings.NewReader(`{"message":"  "}`))
		h.Ask(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		h := NewOracleHandler(&fakeOracle{}, &fakeResolver{}, &fakeAsker{}, discard())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/oracle/ask",
			strings.NewReader(`{"message":`))
		h.Ask(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
