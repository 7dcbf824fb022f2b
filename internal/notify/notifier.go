// Package notify delivers oracle events to operator channels (Telegram,
// Discord). The Notifier subscribes to the event bus and forwards events
// whose type is in its allowed set; a single channel failure never prevents
// delivery to the remaining channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/events"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// defaultEvents are forwarded when the operator configures no explicit list.
var defaultEvents = []string{
	string(domain.EventMarketProcessed),
	string(domain.EventSocialResolved),
	string(domain.EventError),
}

// Notifier consumes the event bus and dispatches formatted notifications to
// its senders.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events whose type appears in eventTypes are forwarded; an empty list
// selects the default set (verdicts, social resolutions, errors).
func NewNotifier(senders []Sender, eventTypes []string, logger *slog.Logger) *Notifier {
	if len(eventTypes) == 0 {
		eventTypes = defaultEvents
	}
	allowed := make(map[string]bool, len(eventTypes))
	for _, e := range eventTypes {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Run consumes the bus until ctx is cancelled or the bus closes.
func (n *Notifier) Run(ctx context.Context, bus *events.Bus) error {
	if len(n.senders) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ch, cancel := bus.Subscribe(128)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if !n.allowed[string(ev.Type)] {
				continue
			}
			title, message := formatEvent(ev)
			n.dispatch(ctx, title, message)
		}
	}
}

// formatEvent renders an event for a chat channel.
func formatEvent(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventMarketProcessed:
		if ev.Verdict == nil {
			return string(ev.Type), ""
		}
		v := ev.Verdict
		title = fmt.Sprintf("Market %s: %s", v.FinalStatus, v.MarketTitle)
		message = fmt.Sprintf("Action: %s | Checkmark: %t | Score: %d/100\n%s",
			v.Action, v.Checkmark, v.Layer2.ConfidenceScore, v.Layer3.Reasoning)
	case domain.EventSocialResolved:
		if ev.Resolution == nil {
			return string(ev.Type), ""
		}
		r := ev.Resolution
		title = fmt.Sprintf("Social market resolved %s", r.Result)
		message = fmt.Sprintf("Market %s (early: %t)\n%s", r.MarketID, r.IsEarlyResolution, r.Evidence)
	case domain.EventError:
		title = "Oracle error"
		message = ev.Err
	default:
		title = string(ev.Type)
		message = ev.Timestamp.Format("2006-01-02 15:04:05 MST")
	}
	return title, message
}

// dispatch iterates over all senders. Per-sender failures are logged, never
// propagated: a broken webhook must not stall event consumption.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
