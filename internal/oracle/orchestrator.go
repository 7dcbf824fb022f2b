// Package oracle contains the Cerberus orchestrator: the discovery loop
// that feeds new markets through the validation engine, and the social
// resolution poller. One orchestrator instance owns all mutable state; there
// is deliberately no persistence and no horizontal scaling (single
// in-memory authority, a documented limitation).
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/djinn-protocol/cerberus/internal/dashboard"
	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/events"
	"golang.org/x/sync/errgroup"
)

// Registry is the market registry surface the orchestrator needs.
type Registry interface {
	FetchNewMarkets(ctx context.Context) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	PushVerdict(ctx context.Context, verdict domain.Verdict) error
	RequestRefund(ctx context.Context, marketID, reason string) error
}

// Validator runs the 3-stage pipeline for one market.
type Validator interface {
	Validate(ctx context.Context, market domain.Market) domain.EngineResult
}

// Config holds the orchestrator scheduling parameters.
type Config struct {
	PollInterval       time.Duration // discovery poll cadence
	SocialPollInterval time.Duration // outer social resolution tick
}

// Orchestrator coordinates market discovery, validation, verdict
// persistence, and event emission. Start and Stop are idempotent; Stop
// halts future ticks but never interrupts an in-flight external call, which
// completes and still mutates state.
type Orchestrator struct {
	registry Registry
	engine   Validator
	resolver *Resolver
	store    *dashboard.Store
	bus      *events.Bus
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	inflight map[string]chan struct{} // market IDs currently being validated
}

// New creates an Orchestrator. The clock argument is the time source; pass
// nil for time.Now.
func New(registry Registry, engine Validator, resolver *Resolver, store *dashboard.Store, bus *events.Bus, cfg Config, clock func() time.Time, logger *slog.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Minute
	}
	if cfg.SocialPollInterval <= 0 {
		cfg.SocialPollInterval = 5 * time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		registry: registry,
		engine:   engine,
		resolver: resolver,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
		now:      clock,
		inflight: make(map[string]chan struct{}),
	}
}

// Start runs one immediate discovery poll, then launches the two periodic
// loops. It is a no-op when the orchestrator is already running.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.logger.Info("already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.running = true
	o.mu.Unlock()

	o.logger.Info("cerberus oracle starting",
		slog.Duration("poll_interval", o.cfg.PollInterval),
		slog.Duration("social_poll_interval", o.cfg.SocialPollInterval),
	)

	o.store.SetPolling(true)
	o.bus.Publish(domain.Event{Type: domain.EventStarted})

	go o.run(runCtx)
}

// run owns the two loops until the context is cancelled.
func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)

	// Initial fetch before the tickers start.
	o.PollForNewMarkets(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				o.PollForNewMarkets(ctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.SocialPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				o.resolver.Tick(ctx)
			}
		}
	})

	_ = g.Wait()

	// When the parent context dies without Stop being called, clear the
	// running state here so Running() and the status API cannot report a
	// live oracle whose loops are gone. Stop flips running first, so this
	// branch is skipped on the explicit-Stop path.
	o.mu.Lock()
	selfStopped := o.running
	o.running = false
	o.mu.Unlock()
	if selfStopped {
		o.store.SetPolling(false)
		o.bus.Publish(domain.Event{Type: domain.EventStopped})
	}

	o.logger.Info("loops stopped")
}

// Stop cancels both loops and waits for them to exit. It is idempotent.
// In-flight external calls are not interrupted; they complete and still
// mutate state.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	cancel()
	<-done

	o.store.SetPolling(false)
	o.bus.Publish(domain.Event{Type: domain.EventStopped})
	o.logger.Info("stopped")
}

// Running reports whether the orchestrator loops are active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// PollForNewMarkets fetches the batch of not-yet-seen markets and processes
// them sequentially, one at a time, to respect downstream LLM and social
// API rate limits. Fetch failures are logged and retried on the next tick.
func (o *Orchestrator) PollForNewMarkets(ctx context.Context) {
	o.logger.Info("polling for new markets")

	markets, err := o.registry.FetchNewMarkets(ctx)
	if err != nil {
		o.logger.Error("market fetch failed", slog.String("error", err.Error()))
		o.bus.Publish(domain.Event{Type: domain.EventError, Err: err.Error()})
		return
	}

	if len(markets) == 0 {
		o.logger.Info("no new markets")
		return
	}

	o.logger.Info("new markets found", slog.Int("count", len(markets)))

	for _, market := range markets {
		o.ProcessMarket(ctx, market)
	}

	snapshot := o.store.Snapshot()
	o.bus.Publish(domain.Event{Type: domain.EventPollComplete, Dashboard: &snapshot})
}

// ProcessMarket drives one market through the pipeline and returns its
// verdict. A panic or unexpected failure is isolated to this market: it
// yields a REJECTED error verdict and the rest of the cycle continues. A
// market already in a terminal state is never reprocessed.
func (o *Orchestrator) ProcessMarket(ctx context.Context, market domain.Market) domain.Verdict {
	if verdict, ok := o.settledVerdict(market); ok {
		o.logger.Warn("market already terminal, skipping",
			slog.String("market_id", market.ID),
			slog.String("status", string(verdict.FinalStatus)),
		)
		return verdict
	}

	// Claim the market so a manual verify racing the discovery loop, or two
	// concurrent verify calls, cannot run the pipeline twice for one ID. The
	// losing claimant waits for the winner and returns its verdict.
	if !o.claim(market.ID) {
		verdict, _ := o.settledVerdict(market)
		return verdict
	}
	defer o.release(market.ID)

	// Re-check under the claim: the market may have settled between the
	// guard above and the claim.
	if verdict, ok := o.settledVerdict(market); ok {
		return verdict
	}

	start := o.now()

	dm := domain.DashboardMarket{
		Market:             market,
		VerificationStatus: domain.StatusPendingVerification,
		LayerProgress: domain.LayerProgress{
			Layer1: domain.StagePending,
			Layer2: domain.StagePending,
			Layer3: domain.StagePending,
		},
	}
	o.updateDashboard(dm)

	dm.VerificationStatus = domain.StatusLayer1Processing
	o.updateDashboard(dm)

	result := o.validate(ctx, market)
	verdict := o.buildVerdict(market, result, o.now().Sub(start))

	// The jump to a terminal state happens atomically, after all three
	// stages settled.
	dm.VerificationStatus = verdict.FinalStatus.DashboardStatus()
	dm.Verdict = &verdict
	dm.Checkmark = verdict.Checkmark
	dm.ResolutionDate = verdict.ResolutionDate
	dm.AIDescription = verdict.AIDescription
	dm.CurrentLayer = 3
	dm.LayerProgress = domain.LayerProgress{
		Layer1: domain.StagePassed,
		Layer2: domain.StagePassed,
		Layer3: stageOutcome(verdict.FinalStatus),
	}
	o.updateDashboard(dm)

	if err := o.registry.PushVerdict(ctx, verdict); err != nil {
		o.logger.Error("verdict push failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
		o.bus.Publish(domain.Event{Type: domain.EventError, Err: err.Error()})
	}

	if verdict.Action == domain.ActionRefundAndDelete {
		if err := o.registry.RequestRefund(ctx, market.ID, verdict.Layer3.Reasoning); err != nil {
			o.logger.Error("refund request failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()),
			)
			o.bus.Publish(domain.Event{Type: domain.EventError, Err: err.Error()})
		}
	}

	// Approved social-claim markets move on to adaptive resolution.
	if verdict.Action == domain.ActionApprove && market.IsSocial() {
		o.resolver.Register(market)
	}

	o.logger.Info("market processed",
		slog.String("market_id", market.ID),
		slog.String("status", string(verdict.FinalStatus)),
		slog.String("action", string(verdict.Action)),
		slog.Duration("took", verdict.TotalProcessingTime),
	)

	o.bus.Publish(domain.Event{Type: domain.EventMarketProcessed, Verdict: &verdict})
	return verdict
}

// settledVerdict returns the stored verdict of a market already in a
// terminal state.
func (o *Orchestrator) settledVerdict(market domain.Market) (domain.Verdict, bool) {
	existing, ok := o.store.Get(market.ID)
	if !ok || !existing.VerificationStatus.Terminal() {
		return domain.Verdict{}, false
	}
	if existing.Verdict != nil {
		return *existing.Verdict, true
	}
	return domain.Verdict{MarketID: market.ID, MarketTitle: market.Title}, true
}

// claim marks the market as in-flight. It reports false when another
// goroutine already holds the claim, after waiting for that run to settle.
func (o *Orchestrator) claim(id string) bool {
	o.mu.Lock()
	ch, held := o.inflight[id]
	if !held {
		o.inflight[id] = make(chan struct{})
		o.mu.Unlock()
		return true
	}
	o.mu.Unlock()
	<-ch
	return false
}

// release drops the in-flight claim, waking every loser.
func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	close(o.inflight[id])
	delete(o.inflight, id)
	o.mu.Unlock()
}

// validate runs the engine inside a recover boundary so one market's panic
// cannot abort the remaining markets in a cycle.
func (o *Orchestrator) validate(ctx context.Context, market domain.Market) (result domain.EngineResult) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Sprintf("validation panic: %v", rec)
			o.logger.Error("market validation panicked",
				slog.String("market_id", market.ID),
				slog.String("panic", err),
			)
			o.bus.Publish(domain.Event{Type: domain.EventError, Err: err})
			result = domain.EngineResult{
				Outcome: domain.OutcomeRejected,
				Judgment: domain.JudgeReport{
					FinalVerdict: domain.JudgeRejected,
					Reasoning:    err,
					Category:     market.Category,
				},
			}
		}
	}()
	return o.engine.Validate(ctx, market)
}

// VerifyMarket fetches a single market from the registry and processes it
// on demand (admin trigger).
func (o *Orchestrator) VerifyMarket(ctx context.Context, marketID string) (domain.Verdict, error) {
	market, err := o.registry.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("oracle: verify market %s: %w", marketID, err)
	}
	return o.ProcessMarket(ctx, market), nil
}

// RegisterSocialMarket starts social resolution tracking for the market.
// It is a no-op when the market has no social-claim fields.
func (o *Orchestrator) RegisterSocialMarket(market domain.Market) bool {
	return o.resolver.Register(market)
}

// Resolver exposes the social resolution poller for the status API.
func (o *Orchestrator) Resolver() *Resolver {
	return o.resolver
}

// buildVerdict maps the engine result onto the verdict schema:
//
//	VERIFIED  -> verified / APPROVE            / checkmark
//	UNCERTAIN -> flagged  / MANUAL_REVIEW      / no checkmark
//	otherwise -> rejected / REFUND_AND_DELETE  / no checkmark
func (o *Orchestrator) buildVerdict(market domain.Market, result domain.EngineResult, took time.Duration) domain.Verdict {
	verdict := domain.Verdict{
		MarketID:            market.ID,
		MarketTitle:         market.Title,
		Timestamp:           o.now(),
		Layer1:              result.Evidence,
		Layer2:              result.Analysis,
		Layer3:              result.Judgment,
		AIDescription:       result.Judgment.GeneratedDescription,
		Category:            result.Judgment.Category,
		TotalProcessingTime: took,
	}
	if verdict.Category == "" {
		verdict.Category = "other"
	}

	switch result.Outcome {
	case domain.OutcomeVerified:
		verdict.FinalStatus = domain.FinalVerified
		verdict.Action = domain.ActionApprove
		verdict.Checkmark = true
		t := o.now()
		verdict.VerifiedAt = &t
	case domain.OutcomeUncertain:
		verdict.FinalStatus = domain.FinalFlagged
		verdict.Action = domain.ActionManualReview
	default:
		verdict.FinalStatus = domain.FinalRejected
		verdict.Action = domain.ActionRefundAndDelete
	}
	return verdict
}

// updateDashboard is the single write path into the dashboard store; every
// mutation also emits a dashboard_update event.
func (o *Orchestrator) updateDashboard(dm domain.DashboardMarket) {
	o.store.Upsert(dm)
	snapshot := o.store.Snapshot()
	o.bus.Publish(domain.Event{Type: domain.EventDashboardUpdate, Dashboard: &snapshot})
}

func stageOutcome(status domain.FinalStatus) domain.StageState {
	if status == domain.FinalVerified {
		return domain.StagePassed
	}
	return domain.StageFailed
}
