package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/llm"
)

// Analyst is stage 2: it scores the market's credibility with the LLM judge,
// given the Hunter's evidence. A failed LLM call degrades to a zero-score
// report with a risk flag instead of aborting the pipeline.
type Analyst struct {
	judge  llm.Judge
	logger *slog.Logger
}

// NewAnalyst creates the analysis stage.
func NewAnalyst(judge llm.Judge, logger *slog.Logger) *Analyst {
	return &Analyst{
		judge:  judge,
		logger: logger.With(slog.String("component", "analyst")),
	}
}

// riskFlagLLMUnavailable marks reports produced without a working judge.
const riskFlagLLMUnavailable = "llm_unavailable"

// Run produces the analysis report for one market.
func (a *Analyst) Run(ctx context.Context, market domain.Market, evidence domain.EvidenceReport) domain.AnalysisReport {
	start := time.Now()

	verdict, err := a.judge.Query(ctx, llm.ProtocolValidation, analysisPrompt(market, evidence))
	if err != nil {
		a.logger.WarnContext(ctx, "analysis degraded, judge unavailable",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
		return domain.AnalysisReport{
			ConfidenceScore: 0,
			RiskFlags:       []string{riskFlagLLMUnavailable},
			Reasoning:       "analysis unavailable: " + err.Error(),
			ProcessingTime:  time.Since(start),
		}
	}

	report := domain.AnalysisReport{
		ConfidenceScore:   clampScore(verdict.ConfidenceScore),
		RiskFlags:         verdict.RiskFlags,
		IsResolvable:      verdict.IsResolvable,
		IsObjective:       verdict.IsObjective,
		HasVerifiableDate: verdict.HasVerifiableDate,
		Reasoning:         verdict.ReasoningSummary,
		ProcessingTime:    time.Since(start),
	}
	if report.RiskFlags == nil {
		report.RiskFlags = []string{}
	}

	// An unreachable source caps confidence: the claim cannot be checked
	// against anything, whatever the model thinks of the wording.
	if !evidence.SourceAccessible && report.ConfidenceScore > 30 {
		report.ConfidenceScore = 30
		report.RiskFlags = append(report.RiskFlags, "source_unreachable")
	}

	return report
}

// analysisPrompt renders the market and evidence for the validation query.
func analysisPrompt(market domain.Market, evidence domain.EvidenceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market claim: %s\n", market.Title)
	fmt.Fprintf(&b, "Description: %s\n", market.Description)
	fmt.Fprintf(&b, "Source URL: %s\n", market.SourceURL)
	fmt.Fprintf(&b, "Category: %s\n", market.Category)
	if market.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires: %s\n", market.ExpiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Source accessible: %t\n", evidence.SourceAccessible)
	if len(evidence.ExtractedFacts) > 0 {
		fmt.Fprintf(&b, "Extracted facts: %s\n", strings.Join(evidence.ExtractedFacts, "; "))
	}
	b.WriteString("\nAssess whether this market is resolvable, objective, and has a verifiable resolution date. Score credibility 0-100.")
	return b.String()
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
