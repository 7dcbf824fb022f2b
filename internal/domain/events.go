package domain

import "time"

// EventType names the events emitted by the orchestrator.
type EventType string

const (
	EventStarted         EventType = "started"
	EventStopped         EventType = "stopped"
	EventPollComplete    EventType = "poll_complete"
	EventMarketProcessed EventType = "market_processed"
	EventDashboardUpdate EventType = "dashboard_update"
	EventSocialResolved  EventType = "twitter_market_resolved"
	EventError           EventType = "error"
)

// Event is one message on the oracle event bus. Exactly one payload field is
// set, matching the event type.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Verdict    *Verdict          `json:"verdict,omitempty"`    // market_processed
	Dashboard  *DashboardState   `json:"dashboard,omitempty"`  // dashboard_update, poll_complete
	Resolution *SocialResolution `json:"resolution,omitempty"` // twitter_market_resolved
	Err        string            `json:"error,omitempty"`      // error
}

// SocialResolution is the payload of a twitter_market_resolved event.
type SocialResolution struct {
	MarketID          string           `json:"marketId"`
	Result            ResolutionResult `json:"result"`
	Evidence          string           `json:"evidence"`
	IsEarlyResolution bool             `json:"isEarlyResolution"`
}
