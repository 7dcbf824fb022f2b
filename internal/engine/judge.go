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

// Judge is stage 3: the final approve/reject call. When the LLM is
// unavailable it falls back to a conservative heuristic over the two earlier
// reports, so the stage still settles.
type Judge struct {
	judge             llm.Judge
	verifiedThreshold int
	logger            *slog.Logger
}

// NewJudge creates the judgment stage. verifiedThreshold is the minimum
// Analyst confidence for a checkmark-worthy approval.
func NewJudge(judge llm.Judge, verifiedThreshold int, logger *slog.Logger) *Judge {
	return &Judge{
		judge:             judge,
		verifiedThreshold: verifiedThreshold,
		logger:            logger.With(slog.String("component", "judge")),
	}
}

// Run produces the judge report for one market.
func (j *Judge) Run(ctx context.Context, market domain.Market, evidence domain.EvidenceReport, analysis domain.AnalysisReport) domain.JudgeReport {
	start := time.Now()

	verdict, err := j.judge.Query(ctx, llm.ProtocolJudgment, judgmentPrompt(market, evidence, analysis))
	if err != nil {
		j.logger.WarnContext(ctx, "judgment degraded, judge unavailable",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
		return j.fallback(market, evidence, analysis, start)
	}

	final := domain.JudgeRejected
	if strings.EqualFold(verdict.FinalVerdict, string(domain.JudgeApproved)) {
		final = domain.JudgeApproved
	}

	category := verdict.Category
	if category == "" {
		category = defaultCategory(market)
	}

	return domain.JudgeReport{
		FinalVerdict:         final,
		CheckmarkEarned:      final == domain.JudgeApproved && analysis.ConfidenceScore >= j.verifiedThreshold,
		Category:             category,
		GeneratedDescription: verdict.GeneratedDescription,
		Reasoning:            verdict.ReasoningSummary,
		ProcessingTime:       time.Since(start),
	}
}

// fallback settles the stage without a model: approve only when the evidence
// and analysis already clear the verified bar on their own.
func (j *Judge) fallback(market domain.Market, evidence domain.EvidenceReport, analysis domain.AnalysisReport, start time.Time) domain.JudgeReport {
	final := domain.JudgeRejected
	if evidence.SourceAccessible && analysis.ConfidenceScore >= j.verifiedThreshold && analysis.IsResolvable {
		final = domain.JudgeApproved
	}
	return domain.JudgeReport{
		FinalVerdict:   final,
		Category:       defaultCategory(market),
		Reasoning:      "judgment unavailable; settled from evidence and analysis reports",
		ProcessingTime: time.Since(start),
	}
}

// judgmentPrompt renders the full case file for the final call.
func judgmentPrompt(market domain.Market, evidence domain.EvidenceReport, analysis domain.AnalysisReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market claim: %s\n", market.Title)
	fmt.Fprintf(&b, "Description: %s\n", market.Description)
	fmt.Fprintf(&b, "Source URL: %s (accessible: %t)\n", market.SourceURL, evidence.SourceAccessible)
	fmt.Fprintf(&b, "Analysis confidence: %d/100\n", analysis.ConfidenceScore)
	fmt.Fprintf(&b, "Analysis reasoning: %s\n", analysis.Reasoning)
	if len(analysis.RiskFlags) > 0 {
		fmt.Fprintf(&b, "Risk flags: %s\n", strings.Join(analysis.RiskFlags, ", "))
	}
	b.WriteString("\nDeliver the final verdict: APPROVED or REJECTED. Assign a category and write a one-paragraph neutral description for the market listing.")
	return b.String()
}

// defaultCategory falls back to the creator-supplied category, or "other".
func defaultCategory(market domain.Market) string {
	if market.Category != "" {
		return market.Category
	}
	return "other"
}
