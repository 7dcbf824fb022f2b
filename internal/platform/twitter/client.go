// Package twitter implements the client for the social search API used to
// resolve Twitter-contingent markets. The API surface is two calls: a
// keyword search over a user's recent tweets and a metric-threshold check on
// a single tweet.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// KeywordResult is the outcome of a keyword search.
type KeywordResult struct {
	Found    bool   `json:"found"`
	Evidence string `json:"evidence"`
}

// MetricResult is the outcome of a metric-threshold check.
type MetricResult struct {
	Passed bool `json:"passed"`
}

// Client is the social search API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds the social search client parameters.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a new social search client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.APIURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DidUserTweetKeyword reports whether the user tweeted the keyword within
// the last windowHours hours. A deleted or suspended target surfaces as
// domain.ErrTargetLost.
func (c *Client) DidUserTweetKeyword(ctx context.Context, username, keyword string, windowHours int) (KeywordResult, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("keyword", keyword)
	params.Set("window_hours", strconv.Itoa(windowHours))

	body, err := c.doGet(ctx, "/search/keyword?"+params.Encode())
	if err != nil {
		return KeywordResult{}, fmt.Errorf("twitter: keyword search @%s: %w", username, err)
	}

	var result KeywordResult
	if err := json.Unmarshal(body, &result); err != nil {
		return KeywordResult{}, fmt.Errorf("twitter: decode keyword result: %w", err)
	}
	return result, nil
}

// CheckTweetMetric reports whether the tweet's metric (likes, retweets,
// replies) has reached the threshold.
func (c *Client) CheckTweetMetric(ctx context.Context, tweetID, metric string, threshold int) (MetricResult, error) {
	params := url.Values{}
	params.Set("tweet_id", tweetID)
	params.Set("metric", metric)
	params.Set("threshold", strconv.Itoa(threshold))

	body, err := c.doGet(ctx, "/tweets/metric?"+params.Encode())
	if err != nil {
		return MetricResult{}, fmt.Errorf("twitter: metric check %s: %w", tweetID, err)
	}

	var result MetricResult
	if err := json.Unmarshal(body, &result); err != nil {
		return MetricResult{}, fmt.Errorf("twitter: decode metric result: %w", err)
	}
	return result, nil
}

// errorResponse is the API's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// doGet sends a GET request and maps target-loss responses onto the
// domain.ErrTargetLost sentinel so the resolver can short-circuit.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, domain.ErrTargetLost
	case resp.StatusCode == http.StatusForbidden && isTargetLost(body):
		return nil, domain.ErrTargetLost
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// isTargetLost classifies an error body as "target deleted or suspended".
func isTargetLost(body []byte) bool {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return false
	}
	msg := strings.ToLower(er.Error)
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "deleted") ||
		strings.Contains(msg, "suspended")
}
