// Package llm wraps the Gemini API behind the small judge interface the
// validation pipeline needs: protocol-tagged prompts in, structured verdicts
// out. Prompt content lives with the callers; this package owns transport,
// JSON-mode decoding, timeouts, and the shared request budget.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Protocol tags the kind of judgment being requested. The tag is prepended
// to the prompt so one model serves all paths.
type Protocol string

const (
	// ProtocolValidation asks for a credibility analysis of a market claim
	// against gathered evidence (Analyst stage).
	ProtocolValidation Protocol = "VALIDATION_PROTOCOL"
	// ProtocolJudgment asks for the final approve/reject call (Judge stage).
	ProtocolJudgment Protocol = "JUDGMENT_PROTOCOL"
	// ProtocolInteraction is the free-form oracle Q&A path.
	ProtocolInteraction Protocol = "INTERACTION_PROTOCOL"
)

// Verdict is the structured response of a judge query. Stage callers read
// the fields relevant to their protocol; ReasoningSummary is always set.
type Verdict struct {
	ReasoningSummary     string   `json:"reasoning_summary"`
	ConfidenceScore      int      `json:"confidence_score"`
	IsResolvable         bool     `json:"is_resolvable"`
	IsObjective          bool     `json:"is_objective"`
	HasVerifiableDate    bool     `json:"has_verifiable_date"`
	RiskFlags            []string `json:"risk_flags"`
	FinalVerdict         string   `json:"final_verdict"`
	CheckmarkEarned      bool     `json:"checkmark_earned"`
	Category             string   `json:"category"`
	GeneratedDescription string   `json:"generated_description"`
}

// Judge is the scoring oracle consumed by the engine and the Q&A path.
type Judge interface {
	Query(ctx context.Context, protocol Protocol, prompt string) (Verdict, error)
}

// Client implements Judge on top of the Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *Limiter
}

// Config holds the judge client parameters.
type Config struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	MinInterval time.Duration
}

// NewClient creates a Gemini-backed judge client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
		limiter: NewLimiter(cfg.MinInterval),
	}, nil
}

// systemInstruction pins the response contract for every protocol.
const systemInstruction = `You are the Cerberus oracle for a prediction market.
Respond with a single JSON object matching this schema:
{"reasoning_summary": string, "confidence_score": integer 0-100,
"is_resolvable": bool, "is_objective": bool, "has_verifiable_date": bool,
"risk_flags": [string], "final_verdict": "APPROVED"|"REJECTED",
"checkmark_earned": bool, "category": string, "generated_description": string}
Populate every field; use empty values for fields the request does not
concern.`

// Query sends a protocol-tagged prompt and decodes the structured verdict.
// It waits on the shared limiter first, then applies the per-call timeout.
func (c *Client) Query(ctx context.Context, protocol Protocol, prompt string) (Verdict, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Verdict{}, fmt.Errorf("llm: limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := genai.Text(string(protocol) + "\n\n" + prompt)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("llm: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Verdict{}, fmt.Errorf("llm: empty response")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(stripFences(text)), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("llm: decode verdict: %w", err)
	}
	return verdict, nil
}

// stripFences removes a markdown code fence if the model wrapped the JSON in
// one despite the JSON response MIME type.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
