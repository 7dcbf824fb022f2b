package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djinn-protocol/cerberus/internal/dashboard"
	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/llm"
)

type fakeJudge struct {
	verdict  llm.Verdict
	err      error
	prompt   string
	protocol llm.Protocol
}

func (f *fakeJudge) Query(ctx context.Context, protocol llm.Protocol, prompt string) (llm.Verdict, error) {
	f.protocol = protocol
	f.prompt = prompt
	return f.verdict, f.err
}

func TestAskIncludesRecentMarketsAsContext(t *testing.T) {
	store := dashboard.NewStore()
	store.Upsert(domain.DashboardMarket{
		Market:             domain.Market{ID: "mkt-1", Title: "Will BTC hit $100k?"},
		VerificationStatus: domain.StatusVerified,
	})
	store.Upsert(domain.DashboardMarket{
		Market:             domain.Market{ID: "mkt-2", Title: "Will it rain tomorrow?"},
		VerificationStatus: domain.StatusFlagged,
	})

	judge := &fakeJudge{verdict: llm.Verdict{ReasoningSummary: "The signs point to yes."}}
	svc := NewAskService(judge, store, discard())

	answer := svc.Ask(context.Background(), "what do you see?")

	require.Equal(t, "The signs point to yes.", answer)
	require.Equal(t, llm.ProtocolInteraction, judge.protocol)
	require.Contains(t, judge.prompt, `"Will BTC hit $100k?" (verified)`)
	require.Contains(t, judge.prompt, `"Will it rain tomorrow?" (flagged)`)
	require.Contains(t, judge.prompt, "Question: what do you see?")
}

func TestAskDegradesOnJudgeFailure(t *testing.T) {
	store := dashboard.NewStore()

	t.Run("query error", func(t *testing.T) {
		judge := &fakeJudge{err: errors.New("quota exhausted")}
		svc := NewAskService(judge, store, discard())
		require.Equal(t, askFallback, svc.Ask(context.Background(), "hello?"))
	})

	t.Run("empty response", func(t *testing.T) {
		judge := &fakeJudge{}
		svc := NewAskService(judge, store, discard())
		require.Equal(t, askFallback, svc.Ask(context.Background(), "hello?"))
	})
}
