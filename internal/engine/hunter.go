package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// SourceProber checks whether a market's source URL is reachable. Probe never
// returns an error: unreachable sources are encoded in the result.
type SourceProber interface {
	Probe(ctx context.Context, rawURL string) ProbeResult
}

// ProbeResult summarizes one source probe.
type ProbeResult struct {
	Accessible bool
	Summary    string
}

// HTTPProber probes sources with a bounded GET request.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with the given per-request timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

// Probe fetches the URL and reports reachability. Any transport failure or
// non-2xx status counts as unreachable; malformed URLs never reach the wire.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) ProbeResult {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ProbeResult{Summary: "source URL is malformed"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ProbeResult{Summary: "source URL is malformed"}
	}
	req.Header.Set("User-Agent", "Cerberus-Oracle/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Summary: fmt.Sprintf("source unreachable: %v", err)}
	}
	defer resp.Body.Close()
	// Drain a little so keep-alive connections can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProbeResult{Summary: fmt.Sprintf("source returned status %d", resp.StatusCode)}
	}
	return ProbeResult{Accessible: true, Summary: "source reachable"}
}

// Hunter is stage 1: it gathers a best-effort evidence bundle for a market.
// It never fails; missing evidence degrades the bundle instead.
type Hunter struct {
	prober SourceProber
	logger *slog.Logger
}

// NewHunter creates the evidence-gathering stage.
func NewHunter(prober SourceProber, logger *slog.Logger) *Hunter {
	return &Hunter{
		prober: prober,
		logger: logger.With(slog.String("component", "hunter")),
	}
}

// Run probes the market's source and extracts whatever facts the market text
// itself offers.
func (h *Hunter) Run(ctx context.Context, market domain.Market) domain.EvidenceReport {
	start := time.Now()

	probe := h.prober.Probe(ctx, market.SourceURL)
	if !probe.Accessible {
		h.logger.WarnContext(ctx, "source not accessible",
			slog.String("market_id", market.ID),
			slog.String("source_url", market.SourceURL),
			slog.String("reason", probe.Summary),
		)
	}

	facts := extractFacts(market)
	report := domain.EvidenceReport{
		SourceAccessible:     probe.Accessible,
		ExtractedFacts:       facts,
		NewsArticles:         []string{},
		SocialMentions:       []string{},
		HasEnoughInformation: probe.Accessible && len(facts) > 0,
		Summary:              probe.Summary,
		ProcessingTime:       time.Since(start),
	}
	return report
}

var (
	dollarRe = regexp.MustCompile(`\$[\d,]+(?:\.\d+)?[kKmMbB]?`)
	yearRe   = regexp.MustCompile(`\b(20\d{2})\b`)
	handleRe = regexp.MustCompile(`@[A-Za-z0-9_]{1,15}`)
)

// extractFacts pulls verifiable fragments out of the market text: monetary
// figures, years, social handles, the source domain, and the expiry date.
func extractFacts(market domain.Market) []string {
	text := market.Title + " " + market.Description
	var facts []string

	for _, m := range dollarRe.FindAllString(text, 3) {
		facts = append(facts, "amount "+m)
	}
	for _, m := range yearRe.FindAllString(text, 2) {
		facts = append(facts, "year "+m)
	}
	for _, m := range handleRe.FindAllString(text, 2) {
		facts = append(facts, "handle "+m)
	}
	if d := sourceDomain(market.SourceURL); d != "" {
		facts = append(facts, "source domain "+d)
	}
	if market.ExpiresAt != nil {
		facts = append(facts, "expires "+market.ExpiresAt.UTC().Format("2006-01-02"))
	}
	return facts
}

// sourceDomain returns the bare host of the source URL, without port or www.
func sourceDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}
