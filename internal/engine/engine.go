// Package engine implements the 3-stage "3-Dogs" validation pipeline:
// Hunter gathers evidence, Analyst scores credibility, Judge makes the final
// call. Stages run strictly in sequence and every stage produces a
// best-effort report even on partial failure; the pipeline never aborts
// early.
package engine

import (
	"context"
	"log/slog"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/llm"
)

// uncertainFloor is the minimum analysis confidence at which a rejected
// judgment is downgraded to UNCERTAIN (manual review) instead of a hard
// rejection.
const uncertainFloor = 40

// Engine runs the three validation stages for one market.
type Engine struct {
	hunter            *Hunter
	analyst           *Analyst
	judge             *Judge
	verifiedThreshold int
	logger            *slog.Logger
}

// Config holds the engine parameters.
type Config struct {
	// VerifiedThreshold is the minimum Analyst confidence for a VERIFIED
	// outcome on an approved market.
	VerifiedThreshold int
}

// New creates an Engine from its stage dependencies.
func New(prober SourceProber, judge llm.Judge, cfg Config, logger *slog.Logger) *Engine {
	threshold := cfg.VerifiedThreshold
	if threshold <= 0 {
		threshold = 70
	}
	logger = logger.With(slog.String("component", "engine"))
	return &Engine{
		hunter:            NewHunter(prober, logger),
		analyst:           NewAnalyst(judge, logger),
		judge:             NewJudge(judge, threshold, logger),
		verifiedThreshold: threshold,
		logger:            logger,
	}
}

// Validate runs all three stages sequentially and aggregates the outcome.
// It never returns an error: failures inside stages degrade their reports.
func (e *Engine) Validate(ctx context.Context, market domain.Market) domain.EngineResult {
	e.logger.InfoContext(ctx, "validation starting",
		slog.String("market_id", market.ID),
		slog.String("title", market.Title),
	)

	evidence := e.hunter.Run(ctx, market)
	analysis := e.analyst.Run(ctx, market, evidence)
	judgment := e.judge.Run(ctx, market, evidence, analysis)

	outcome := e.classify(analysis, judgment)

	e.logger.InfoContext(ctx, "validation complete",
		slog.String("market_id", market.ID),
		slog.String("outcome", string(outcome)),
		slog.Int("score", analysis.ConfidenceScore),
	)

	return domain.EngineResult{
		Outcome:    outcome,
		FinalScore: analysis.ConfidenceScore,
		Evidence:   evidence,
		Analysis:   analysis,
		Judgment:   judgment,
	}
}

// classify folds the judge's call and the analyst's confidence into the
// aggregate outcome. An approval below the verified threshold, or a
// rejection with middling confidence, lands in UNCERTAIN for manual review.
func (e *Engine) classify(analysis domain.AnalysisReport, judgment domain.JudgeReport) domain.EngineOutcome {
	approved := judgment.FinalVerdict == domain.JudgeApproved
	switch {
	case approved && analysis.ConfidenceScore >= e.verifiedThreshold:
		return domain.OutcomeVerified
	case approved:
		return domain.OutcomeUncertain
	case analysis.ConfidenceScore >= uncertainFloor:
		return domain.OutcomeUncertain
	default:
		return domain.OutcomeRejected
	}
}
