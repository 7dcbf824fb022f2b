// Package djinn implements the REST client for the Djinn prediction-market
// registry: market discovery, verdict push-back, and refund requests.
package djinn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/google/uuid"
)

// refundRequestedBy tags refund requests issued by this oracle.
const refundRequestedBy = "cerberus-oracle"

// Client is the Djinn registry API client. It remembers every market ID it
// has returned from FetchNewMarkets so a market is handed to the pipeline at
// most once per process lifetime.
type Client struct {
	baseURL    string
	webhookURL string
	httpClient *http.Client

	mu       sync.Mutex
	knownIDs map[string]bool
}

// Config holds the registry client parameters.
type Config struct {
	APIURL     string
	WebhookURL string
	Timeout    time.Duration
}

// NewClient creates a new registry client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.APIURL,
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		knownIDs:   make(map[string]bool),
	}
}

// WebhookConfigured reports whether a webhook URL is set. The registry PUT
// is unconditional; only notification side-effects are gated on this.
func (c *Client) WebhookConfigured() bool {
	return c.webhookURL != ""
}

// FetchAllMarkets returns every market the registry currently lists.
func (c *Client) FetchAllMarkets(ctx context.Context) ([]domain.Market, error) {
	body, err := c.doGet(ctx, "/markets")
	if err != nil {
		return nil, fmt.Errorf("djinn: fetch markets: %w", err)
	}

	var resp marketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("djinn: decode markets: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("djinn: fetch markets: registry reported failure")
	}

	markets := make([]domain.Market, 0, len(resp.Markets))
	for i := range resp.Markets {
		markets = append(markets, resp.Markets[i].ToDomainMarket())
	}
	return markets, nil
}

// FetchNewMarkets returns the markets not seen by any previous call. The
// dedupe set lives here, at the registry-fetch boundary, so the pipeline
// never observes the same market ID twice.
func (c *Client) FetchNewMarkets(ctx context.Context) ([]domain.Market, error) {
	all, err := c.FetchAllMarkets(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var fresh []domain.Market
	for _, m := range all {
		if c.knownIDs[m.ID] {
			continue
		}
		c.knownIDs[m.ID] = true
		fresh = append(fresh, m)
	}
	return fresh, nil
}

// GetMarket returns a single market by its ID.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	body, err := c.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return domain.Market{}, fmt.Errorf("djinn: get market %s: %w", id, err)
	}

	var resp marketResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("djinn: decode market: %w", err)
	}
	if !resp.Success {
		return domain.Market{}, fmt.Errorf("djinn: get market %s: %w", id, domain.ErrNotFound)
	}
	return resp.Market.ToDomainMarket(), nil
}

// PushVerdict syncs a verdict's final status and resolution date back to the
// registry via PUT /markets. When a webhook URL is configured, the full
// verdict is additionally POSTed there; the registry PUT is the system of
// record and never waits on the webhook.
func (c *Client) PushVerdict(ctx context.Context, verdict domain.Verdict) error {
	payload := verdictUpdate{
		ID:     verdict.MarketID,
		Status: string(verdict.FinalStatus),
	}
	if verdict.ResolutionDate != nil {
		ms := verdict.ResolutionDate.UnixMilli()
		payload.ResolutionDate = &ms
	}

	if err := c.doJSON(ctx, http.MethodPut, "/markets", payload); err != nil {
		return fmt.Errorf("djinn: push verdict for %s: %w", verdict.MarketID, err)
	}

	if c.WebhookConfigured() {
		if err := c.notifyWebhook(ctx, verdict); err != nil {
			return fmt.Errorf("djinn: webhook notify for %s: %w", verdict.MarketID, err)
		}
	}
	return nil
}

// notifyWebhook POSTs the full verdict to the configured webhook URL.
func (c *Client) notifyWebhook(ctx context.Context, verdict domain.Verdict) error {
	body, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Cerberus-Oracle/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// PushResolution syncs a social market's YES/NO resolution to the registry.
func (c *Client) PushResolution(ctx context.Context, marketID string, result domain.ResolutionResult, resolvedAt time.Time) error {
	ms := resolvedAt.UnixMilli()
	payload := verdictUpdate{
		ID:             marketID,
		Status:         "RESOLVED_" + string(result),
		ResolutionDate: &ms,
	}

	if err := c.doJSON(ctx, http.MethodPut, "/markets", payload); err != nil {
		return fmt.Errorf("djinn: push resolution for %s: %w", marketID, err)
	}
	return nil
}

// RequestRefund asks the registry to refund and delete a rejected market.
func (c *Client) RequestRefund(ctx context.Context, marketID, reason string) error {
	payload := refundRequest{
		Reason:      reason,
		RequestedBy: refundRequestedBy,
		RequestID:   uuid.NewString(),
	}

	path := "/markets/" + url.PathEscape(marketID) + "/refund"
	if err := c.doJSON(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("djinn: request refund for %s: %w", marketID, err)
	}
	return nil
}

// ResetKnownMarkets clears the dedupe set. Only meant for admin tooling.
func (c *Client) ResetKnownMarkets() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.knownIDs = make(map[string]bool)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends a GET request to the registry API and returns the raw body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Cerberus-Oracle/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

// doJSON sends a JSON-bodied mutation and checks the success envelope.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Cerberus-Oracle/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var result successResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("registry rejected request: %s", result.Error)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
