package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/djinn-protocol/cerberus/internal/dashboard"
	"github.com/djinn-protocol/cerberus/internal/llm"
)

// askFallback is returned when the judge is unreachable; the Q&A path
// degrades instead of erroring.
const askFallback = "The Oracle's connection is experiencing interference."

// askContextMarkets is how many recent markets are included as context.
const askContextMarkets = 5

// AskService is the free-form oracle Q&A path. It shares the judge client
// (and therefore the request budget) with the validation pipeline.
type AskService struct {
	judge  llm.Judge
	store  *dashboard.Store
	logger *slog.Logger
}

// NewAskService creates the Q&A service.
func NewAskService(judge llm.Judge, store *dashboard.Store, logger *slog.Logger) *AskService {
	return &AskService{
		judge:  judge,
		store:  store,
		logger: logger.With(slog.String("component", "ask")),
	}
}

// Ask answers a free-form question with the recent dashboard state as
// context. Judge failures degrade to a canned response.
func (s *AskService) Ask(ctx context.Context, message string) string {
	var b strings.Builder
	b.WriteString("Recent markets under verification:\n")
	for _, m := range s.store.Recent(askContextMarkets) {
		fmt.Fprintf(&b, "- %q (%s)\n", m.Title, m.VerificationStatus)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", message)

	verdict, err := s.judge.Query(ctx, llm.ProtocolInteraction, b.String())
	if err != nil {
		s.logger.Warn("ask query failed", slog.String("error", err.Error()))
		return askFallback
	}
	if verdict.ReasoningSummary == "" {
		return askFallback
	}
	return verdict.ReasoningSummary
}
