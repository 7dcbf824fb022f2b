package djinn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

func marketsBody(ids ...string) string {
	resp := marketsResponse{Success: true}
	for _, id := range ids {
		resp.Markets = append(resp.Markets, APIMarket{
			PublicKey: id,
			Title:     "market " + id,
			SourceURL: "https://example.com/" + id,
			CreatedAt: 1756300000000,
		})
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestFetchNewMarketsDeduplicates(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/markets", r.URL.Path)
		require.Equal(t, "Cerberus-Oracle/1.0", r.Header.Get("User-Agent"))
		switch calls {
		case 1:
			w.Write([]byte(marketsBody("a", "b")))
		default:
			w.Write([]byte(marketsBody("a", "b", "c")))
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	ctx := context.Background()

	fresh, err := c.FetchNewMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 2)

	// Second poll only surfaces the market that was not seen before.
	fresh, err = c.FetchNewMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, "c", fresh[0].ID)

	// Reset forgets everything.
	c.ResetKnownMarkets()
	fresh, err = c.FetchNewMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 3)
}

func TestFetchNewMarketsErrorKeepsDedupeSetIntact(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(marketsBody("a")))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	ctx := context.Background()

	_, err := c.FetchNewMarkets(ctx)
	require.Error(t, err)

	// The market was never returned, so it is still new on the next poll.
	fail = false
	fresh, err := c.FetchNewMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
}

func TestGetMarketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	_, err := c.GetMarket(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPushVerdict(t *testing.T) {
	var got verdictUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/markets", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	err := c.PushVerdict(context.Background(), domain.Verdict{
		MarketID:    "mkt-9",
		FinalStatus: domain.FinalVerified,
	})
	require.NoError(t, err)
	require.Equal(t, "mkt-9", got.ID)
	require.Equal(t, "VERIFIED", got.Status)
	require.Nil(t, got.ResolutionDate)
}

func TestPushVerdictNotifiesWebhook(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer registry.Close()

	var got domain.Verdict
	webhookCalls := 0
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookCalls++
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	c := NewClient(Config{APIURL: registry.URL, WebhookURL: webhook.URL})
	require.True(t, c.WebhookConfigured())

	err := c.PushVerdict(context.Background(), domain.Verdict{
		MarketID:    "mkt-7",
		MarketTitle: "webhook market",
		FinalStatus: domain.FinalRejected,
	})
	require.NoError(t, err)
	require.Equal(t, 1, webhookCalls)
	require.Equal(t, "mkt-7", got.MarketID)
	require.Equal(t, domain.FinalRejected, got.FinalStatus)
}

func TestPushVerdictWebhookFailureSurfaces(t *testing.T) {
	registryCalls := 0
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registryCalls++
		w.Write([]byte(`{"success":true}`))
	}))
	defer registry.Close()

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer webhook.Close()

	c := NewClient(Config{APIURL: registry.URL, WebhookURL: webhook.URL})
	err := c.PushVerdict(context.Background(), domain.Verdict{MarketID: "mkt-8"})
	require.ErrorContains(t, err, "webhook")
	// The registry PUT still happened; only the notification failed.
	require.Equal(t, 1, registryCalls)
}

func TestPushVerdictRegistryRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"unknown market"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	err := c.PushVerdict(context.Background(), domain.Verdict{MarketID: "mkt-9"})
	require.ErrorContains(t, err, "unknown market")
}

func TestRequestRefund(t *testing.T) {
	var got refundRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/markets/mkt-3/refund", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	err := c.RequestRefund(context.Background(), "mkt-3", "failed verification")
	require.NoError(t, err)
	require.Equal(t, "failed verification", got.Reason)
	require.Equal(t, "cerberus-oracle", got.RequestedBy)
	require.NotEmpty(t, got.RequestID)
}

func TestPushResolution(t *testing.T) {
	var got verdictUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	resolvedAt := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	err := c.PushResolution(context.Background(), "mkt-5", domain.ResolutionYes, resolvedAt)
	require.NoError(t, err)
	require.Equal(t, "RESOLVED_YES", got.Status)
	require.NotNil(t, got.ResolutionDate)
	require.Equal(t, resolvedAt.UnixMilli(), *got.ResolutionDate)
}

func TestToDomainMarketSocialFields(t *testing.T) {
	api := APIMarket{
		PublicKey:         "soc-1",
		Title:             "Will @elonmusk tweet DOGE this week?",
		TwitterMarketType: "KEYWORD_MENTION",
		TargetUsername:    "elonmusk",
		TargetKeyword:     "DOGE",
		ExpiresAt:         1756900000000,
	}
	m := api.ToDomainMarket()
	require.True(t, m.IsSocial())
	require.Equal(t, domain.SocialKeywordMention, m.SocialType)
	require.NotNil(t, m.ExpiresAt)

	metric := APIMarket{
		PublicKey:         "soc-2",
		TwitterMarketType: "METRIC_THRESHOLD",
		TargetTweetID:     "12345",
		MetricThreshold:   1000,
	}
	mm := metric.ToDomainMarket()
	require.Equal(t, domain.SocialMetricThreshold, mm.SocialType)
	require.True(t, mm.IsSocial())
}
