package oracle

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/events"
	"github.com/djinn-protocol/cerberus/internal/platform/twitter"
)

// keywordWindowHours is the lookback window for keyword searches.
const keywordWindowHours = 24

// SocialChecker is the social search surface the resolver needs.
type SocialChecker interface {
	DidUserTweetKeyword(ctx context.Context, username, keyword string, windowHours int) (twitter.KeywordResult, error)
	CheckTweetMetric(ctx context.Context, tweetID, metric string, threshold int) (twitter.MetricResult, error)
}

// ResolutionPusher pushes terminal resolutions back to the registry.
type ResolutionPusher interface {
	PushResolution(ctx context.Context, marketID string, result domain.ResolutionResult, resolvedAt time.Time) error
}

// Resolver tracks social-claim markets and resolves them on an adaptive
// cadence: the closer a market's deadline, the more often it is checked. An
// outer fixed tick drains a min-heap of next-due entries against an
// injectable clock.
type Resolver struct {
	social   SocialChecker
	registry ResolutionPusher
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*trackedMarket
	queue   dueQueue
}

// NewResolver creates a Resolver. The clock argument is the time source;
// pass nil for time.Now.
func NewResolver(social SocialChecker, registry ResolutionPusher, bus *events.Bus, clock func() time.Time, logger *slog.Logger) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{
		social:   social,
		registry: registry,
		bus:      bus,
		logger:   logger.With(slog.String("component", "resolver")),
		now:      clock,
		entries:  make(map[string]*trackedMarket),
	}
}

// PollInterval is the adaptive check interval for a market with the given
// hours left until its deadline.
func PollInterval(hoursLeft float64) time.Duration {
	switch {
	case hoursLeft <= 1:
		return 2 * time.Minute
	case hoursLeft <= 6:
		return 5 * time.Minute
	case hoursLeft <= 24:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Register starts tracking a market's social claim. It is a no-op (returning
// false) when the market carries no social-claim fields or is already
// tracked.
func (r *Resolver) Register(market domain.Market) bool {
	sm, ok := domain.ExtractSocialMarket(market, r.now())
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[sm.MarketID]; exists {
		return false
	}

	entry := &trackedMarket{
		market:  sm,
		nextDue: r.now(), // due on the next tick
	}
	r.entries[sm.MarketID] = entry
	heap.Push(&r.queue, entry)

	r.logger.Info("registered social market",
		slog.String("market_id", sm.MarketID),
		slog.String("type", string(sm.Type)),
		slog.String("title", sm.Title),
	)
	return true
}

// Tracked returns the number of markets currently being tracked.
func (r *Resolver) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Status describes every tracked market for the status API.
func (r *Resolver) Status() []domain.SocialMarketStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make([]domain.SocialMarketStatus, 0, len(r.entries))
	for _, e := range r.entries {
		target := "@" + e.market.TargetUsername + " / " + e.market.TargetKeyword
		if e.market.Type == domain.SocialMetricThreshold {
			target = fmt.Sprintf("tweet %s >= %d likes", e.market.TargetTweetID, e.market.MetricThreshold)
		}
		hoursLeft := e.market.ExpiresAt.Sub(now).Hours()
		if hoursLeft < 0 {
			hoursLeft = 0
		}
		out = append(out, domain.SocialMarketStatus{
			MarketID:    e.market.MarketID,
			Title:       e.market.Title,
			Type:        string(e.market.Type),
			Target:      target,
			HoursLeft:   hoursLeft,
			LastChecked: e.lastCheck,
			NextDue:     e.nextDue,
		})
	}
	return out
}

// Tick runs resolution checks for every tracked market whose next-due time
// has elapsed, then reschedules or removes each. Checks run outside the
// lock; the entry set is re-validated before any terminal removal so a
// market is removed at most once.
func (r *Resolver) Tick(ctx context.Context) {
	now := r.now()

	var due []*trackedMarket
	r.mu.Lock()
	for {
		head := r.queue.peek()
		if head == nil || head.nextDue.After(now) {
			break
		}
		heap.Pop(&r.queue)
		head.lastCheck = now
		due = append(due, head)
	}
	r.mu.Unlock()

	if len(due) == 0 {
		return
	}

	r.logger.Info("checking social markets", slog.Int("due", len(due)))

	for _, entry := range due {
		report := r.check(ctx, entry.market)

		switch report.Result {
		case domain.ResolutionYes, domain.ResolutionNo:
			r.resolve(ctx, entry, report)

		case domain.ResolutionPending:
			hoursLeft := entry.market.ExpiresAt.Sub(r.now()).Hours()
			r.logger.Info("social market pending",
				slog.String("market_id", entry.market.MarketID),
				slog.Float64("hours_left", hoursLeft),
			)
			r.requeue(entry)

		case domain.ResolutionUncertain:
			r.logger.Warn("social check uncertain",
				slog.String("market_id", entry.market.MarketID),
				slog.String("evidence", report.Evidence),
			)
			r.requeue(entry)
		}
	}
}

// check runs one resolution check. Deadline expiry and target loss both
// produce definitive NOs; API trouble produces UNCERTAIN.
func (r *Resolver) check(ctx context.Context, sm domain.SocialMarket) domain.ResolutionReport {
	now := r.now()

	if now.After(sm.ExpiresAt) {
		return domain.ResolutionReport{
			Result:   domain.ResolutionNo,
			Evidence: "deadline exceeded without the condition being met",
		}
	}

	switch {
	case sm.Type == domain.SocialKeywordMention && sm.TargetUsername != "" && sm.TargetKeyword != "":
		result, err := r.social.DidUserTweetKeyword(ctx, sm.TargetUsername, sm.TargetKeyword, keywordWindowHours)
		if err != nil {
			return r.classifyCheckError(sm, err)
		}
		if result.Found {
			evidence := result.Evidence
			if evidence == "" {
				evidence = fmt.Sprintf("@%s tweeted %q", sm.TargetUsername, sm.TargetKeyword)
			}
			return domain.ResolutionReport{
				Result:            domain.ResolutionYes,
				Evidence:          evidence,
				IsEarlyResolution: now.Before(sm.ExpiresAt),
			}
		}
		return domain.ResolutionReport{Result: domain.ResolutionPending, Evidence: "condition not met yet"}

	case sm.Type == domain.SocialMetricThreshold && sm.TargetTweetID != "":
		result, err := r.social.CheckTweetMetric(ctx, sm.TargetTweetID, "likes", sm.MetricThreshold)
		if err != nil {
			return r.classifyCheckError(sm, err)
		}
		if result.Passed {
			return domain.ResolutionReport{
				Result:            domain.ResolutionYes,
				Evidence:          fmt.Sprintf("tweet %s reached %d likes", sm.TargetTweetID, sm.MetricThreshold),
				IsEarlyResolution: now.Before(sm.ExpiresAt),
			}
		}
		return domain.ResolutionReport{Result: domain.ResolutionPending, Evidence: "threshold not reached yet"}

	default:
		return domain.ResolutionReport{Result: domain.ResolutionUncertain, Evidence: "insufficient data for resolution"}
	}
}

// classifyCheckError maps a failed social check onto a report. A lost target
// (deleted tweet, suspended account) is a definitive NO ahead of the
// deadline; anything else is UNCERTAIN and retried at the same cadence.
func (r *Resolver) classifyCheckError(sm domain.SocialMarket, err error) domain.ResolutionReport {
	if errors.Is(err, domain.ErrTargetLost) {
		return domain.ResolutionReport{
			Result:            domain.ResolutionNo,
			Evidence:          "source content was deleted or user suspended before resolution",
			IsEarlyResolution: true,
		}
	}
	return domain.ResolutionReport{
		Result:   domain.ResolutionUncertain,
		Evidence: err.Error(),
	}
}

// resolve finalizes a tracked market: removes it exactly once, pushes the
// resolution to the registry, and emits the resolved event.
func (r *Resolver) resolve(ctx context.Context, entry *trackedMarket, report domain.ResolutionReport) {
	marketID := entry.market.MarketID

	r.mu.Lock()
	if _, tracked := r.entries[marketID]; !tracked {
		r.mu.Unlock()
		return
	}
	delete(r.entries, marketID)
	r.queue.remove(entry)
	r.mu.Unlock()

	r.logger.Info("social market resolved",
		slog.String("market_id", marketID),
		slog.String("result", string(report.Result)),
		slog.Bool("early", report.IsEarlyResolution),
		slog.String("evidence", report.Evidence),
	)

	if err := r.registry.PushResolution(ctx, marketID, report.Result, r.now()); err != nil {
		r.logger.Error("push resolution failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		r.bus.Publish(domain.Event{Type: domain.EventError, Err: err.Error()})
	}

	r.bus.Publish(domain.Event{
		Type: domain.EventSocialResolved,
		Resolution: &domain.SocialResolution{
			MarketID:          marketID,
			Result:            report.Result,
			Evidence:          report.Evidence,
			IsEarlyResolution: report.IsEarlyResolution,
		},
	})
}

// requeue puts an unresolved entry back on the heap at its adaptive
// interval.
func (r *Resolver) requeue(entry *trackedMarket) {
	hoursLeft := entry.market.ExpiresAt.Sub(r.now()).Hours()
	next := r.now().Add(PollInterval(hoursLeft))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, tracked := r.entries[entry.market.MarketID]; !tracked {
		return
	}
	entry.nextDue = next
	heap.Push(&r.queue, entry)
}
