package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/djinn-protocol/cerberus/internal/config"
	"github.com/djinn-protocol/cerberus/internal/dashboard"
	"github.com/djinn-protocol/cerberus/internal/engine"
	"github.com/djinn-protocol/cerberus/internal/events"
	"github.com/djinn-protocol/cerberus/internal/llm"
	"github.com/djinn-protocol/cerberus/internal/notify"
	"github.com/djinn-protocol/cerberus/internal/oracle"
	"github.com/djinn-protocol/cerberus/internal/platform/djinn"
	"github.com/djinn-protocol/cerberus/internal/platform/twitter"
)

// Dependencies bundles every component the oracle service needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry     *djinn.Client
	Social       *twitter.Client
	LLM          *llm.Client
	Engine       *engine.Engine
	Store        *dashboard.Store
	Bus          *events.Bus
	Resolver     *oracle.Resolver
	Orchestrator *oracle.Orchestrator
	Ask          *oracle.AskService
	Notifier     *notify.Notifier

	// RedisBridge is nil unless the Redis event mirror is enabled.
	RedisBridge *events.RedisBridge
}

// Wire constructs all concrete components from the given configuration and
// returns them together with a cleanup function that releases resources on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	deps.Registry = djinn.NewClient(djinn.Config{
		APIURL:     cfg.Djinn.APIURL,
		WebhookURL: cfg.Djinn.WebhookURL,
		Timeout:    cfg.Djinn.Timeout.Duration,
	})

	deps.Social = twitter.NewClient(twitter.Config{
		APIURL:  cfg.Twitter.APIURL,
		APIKey:  cfg.Twitter.APIKey,
		Timeout: cfg.Twitter.Timeout.Duration,
	})

	llmClient, err := llm.NewClient(ctx, llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout.Duration,
		MinInterval: cfg.LLM.MinInterval.Duration,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: llm: %w", err)
	}
	deps.LLM = llmClient

	prober := engine.NewHTTPProber(cfg.Oracle.SourceProbeTimeout.Duration)
	deps.Engine = engine.New(prober, llmClient, engine.Config{
		VerifiedThreshold: cfg.Oracle.VerifiedThreshold,
	}, logger)

	deps.Store = dashboard.NewStore()

	deps.Bus = events.NewBus(logger)
	closers = append(closers, deps.Bus.Close)

	if cfg.Redis.Enabled {
		bridge, err := events.NewRedisBridge(ctx, events.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis bridge: %w", err)
		}
		closers = append(closers, func() { _ = bridge.Close() })
		deps.RedisBridge = bridge
	}

	deps.Resolver = oracle.NewResolver(deps.Social, deps.Registry, deps.Bus, nil, logger)

	deps.Orchestrator = oracle.New(
		deps.Registry,
		deps.Engine,
		deps.Resolver,
		deps.Store,
		deps.Bus,
		oracle.Config{
			PollInterval:       cfg.Oracle.PollInterval.Duration,
			SocialPollInterval: cfg.Oracle.SocialPollInterval.Duration,
		},
		nil,
		logger,
	)

	deps.Ask = oracle.NewAskService(llmClient, deps.Store, logger)

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
