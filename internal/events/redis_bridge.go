package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the oracle's pub/sub channels.
const channelPrefix = "cerberus:events:"

// RedisBridge mirrors every bus event onto Redis pub/sub channels
// ("cerberus:events:<name>") so dashboard processes outside this binary can
// consume the oracle's event stream.
type RedisBridge struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// RedisConfig holds the bridge connection parameters.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// NewRedisBridge connects to Redis, pings it to verify connectivity, and
// returns the bridge.
func NewRedisBridge(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisBridge, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("events: redis ping: %w", err)
	}

	return &RedisBridge{
		rdb:    rdb,
		logger: logger.With(slog.String("component", "redis_bridge")),
	}, nil
}

// Run consumes the bus until ctx is cancelled, publishing each event as JSON
// to its channel. Publish failures are logged and skipped; the bridge never
// takes down the oracle.
func (rb *RedisBridge) Run(ctx context.Context, bus *Bus) error {
	ch, cancel := bus.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			rb.publish(ctx, ev)
		}
	}
}

func (rb *RedisBridge) publish(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		rb.logger.ErrorContext(ctx, "marshal event",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	channel := channelPrefix + string(ev.Type)
	if err := rb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		rb.logger.WarnContext(ctx, "redis publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// Close releases the Redis connection.
func (rb *RedisBridge) Close() error {
	return rb.rdb.Close()
}
