package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/events"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
	bodies []string
}

func (s *recordingSender) Send(ctx context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// runNotifier starts Run on a fresh bus and returns the bus plus a wait
// function that shuts everything down.
func runNotifier(t *testing.T, n *Notifier) *events.Bus {
	t.Helper()
	bus := events.NewBus(discard())

	done := make(chan error, 1)
	go func() { done <- n.Run(context.Background(), bus) }()

	t.Cleanup(func() {
		bus.Close()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("notifier did not stop after bus close")
		}
	})
	return bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNotifierForwardsDefaultEvents(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, discard())
	bus := runNotifier(t, n)

	bus.Publish(domain.Event{Type: domain.EventError, Err: "registry down"})
	// Not in the default set: must be dropped.
	bus.Publish(domain.Event{Type: domain.EventDashboardUpdate})
	bus.Publish(domain.Event{Type: domain.EventMarketProcessed, Verdict: &domain.Verdict{
		MarketTitle: "Will BTC hit $100k?",
		FinalStatus: domain.FinalVerified,
		Action:      domain.ActionApprove,
		Checkmark:   true,
		Layer2:      domain.AnalysisReport{ConfidenceScore: 92},
		Layer3:      domain.JudgeReport{Reasoning: "clear source"},
	}})

	waitFor(t, func() bool { return len(sender.sent()) == 2 })
	titles := sender.sent()
	require.Equal(t, "Oracle error", titles[0])
	require.Equal(t, "Market VERIFIED: Will BTC hit $100k?", titles[1])

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Contains(t, sender.bodies[1], "Action: APPROVE | Checkmark: true | Score: 92/100")
	require.Contains(t, sender.bodies[1], "clear source")
}

func TestNotifierHonorsExplicitEventList(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{string(domain.EventSocialResolved)}, discard())
	bus := runNotifier(t, n)

	bus.Publish(domain.Event{Type: domain.EventError, Err: "ignored"})
	bus.Publish(domain.Event{Type: domain.EventSocialResolved, Resolution: &domain.SocialResolution{
		MarketID:          "soc-1",
		Result:            domain.ResolutionYes,
		IsEarlyResolution: true,
		Evidence:          "keyword found",
	}})

	waitFor(t, func() bool { return len(sender.sent()) == 1 })
	require.Equal(t, "Social market resolved YES", sender.sent()[0])
}

func TestNotifierIsolatesSenderFailures(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook 410")}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, discard())
	bus := runNotifier(t, n)

	bus.Publish(domain.Event{Type: domain.EventError, Err: "boom"})

	waitFor(t, func() bool { return len(healthy.sent()) == 1 })
}

func TestNotifierWithoutSendersBlocksUntilCancel(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	bus := events.NewBus(discard())
	defer bus.Close()
	go func() { done <- n.Run(ctx, bus) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier did not stop on cancel")
	}
}

func TestFormatEvent(t *testing.T) {
	t.Run("verdict payload missing", func(t *testing.T) {
		title, message := formatEvent(domain.Event{Type: domain.EventMarketProcessed})
		require.Equal(t, "market_processed", title)
		require.Empty(t, message)
	})

	t.Run("generic event uses timestamp", func(t *testing.T) {
		ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
		title, message := formatEvent(domain.Event{Type: domain.EventStarted, Timestamp: ts})
		require.Equal(t, "started", title)
		require.Equal(t, "2026-08-28 10:00:00 UTC", message)
	})
}
