// Package domain defines the core types shared across the Cerberus oracle:
// markets under verification, verdicts, social-claim tracking entries, and
// the events emitted to downstream consumers.
package domain

import "time"

// VerificationStatus is the lifecycle state of a market inside the oracle.
// Transitions are forward-only: pending_verification -> layer1_processing ->
// one of the three terminal states. A terminal market is never reprocessed.
type VerificationStatus string

const (
	StatusPendingVerification VerificationStatus = "pending_verification"
	StatusLayer1Processing    VerificationStatus = "layer1_processing"
	StatusVerified            VerificationStatus = "verified"
	StatusFlagged             VerificationStatus = "flagged"
	StatusRejected            VerificationStatus = "rejected"
)

// Terminal reports whether the status is one of the three final states.
func (s VerificationStatus) Terminal() bool {
	return s == StatusVerified || s == StatusFlagged || s == StatusRejected
}

// SocialMarketType distinguishes the two kinds of social-claim markets.
type SocialMarketType string

const (
	SocialKeywordMention  SocialMarketType = "KEYWORD_MENTION"
	SocialMetricThreshold SocialMarketType = "METRIC_THRESHOLD"
)

// Creator identifies the wallet that created a market.
type Creator struct {
	Wallet      string `json:"wallet"`
	DisplayName string `json:"displayName"`
}

// Pool holds the market's share pool statistics at discovery time.
type Pool struct {
	YesShares      float64 `json:"yesShares"`
	NoShares       float64 `json:"noShares"`
	TotalLiquidity float64 `json:"totalLiquidity"`
}

// Market is a prediction-market claim as fetched from the Djinn registry.
// It is immutable inside the oracle; all mutable verification state lives on
// DashboardMarket.
type Market struct {
	ID            string
	Title         string
	Description   string
	SourceURL     string
	Category      string
	Creator       Creator
	Pool          Pool
	FeesCollected float64
	CreatedAt     time.Time
	ExpiresAt     *time.Time

	// Social-claim fields. Empty for ordinary markets.
	SocialType      SocialMarketType
	TargetUsername  string
	TargetKeyword   string
	TargetTweetID   string
	MetricThreshold int
}

// IsSocial reports whether the market resolves on a social-media event
// rather than LLM judgment.
func (m Market) IsSocial() bool {
	return m.TargetUsername != "" || m.TargetTweetID != ""
}

// StageState tracks coarse per-stage progress on the dashboard.
type StageState string

const (
	StagePending StageState = "pending"
	StagePassed  StageState = "passed"
	StageFailed  StageState = "failed"
)

// LayerProgress is the coarse per-stage progress flag shown on the
// dashboard. It is only updated when all three stages settle, never between
// individual stages.
type LayerProgress struct {
	Layer1 StageState `json:"layer1"`
	Layer2 StageState `json:"layer2"`
	Layer3 StageState `json:"layer3"`
}

// DashboardMarket is the mutable per-market record owned exclusively by the
// orchestrator. Created on first sighting of an unseen market ID, never
// deleted; retained newest-first in memory until process restart.
type DashboardMarket struct {
	Market

	VerificationStatus VerificationStatus `json:"verificationStatus"`
	CurrentLayer       int                `json:"currentLayer"`
	LayerProgress      LayerProgress      `json:"layerProgress"`
	Verdict            *Verdict           `json:"verdict,omitempty"`
	Checkmark          bool               `json:"checkmark"`
	ResolutionDate     *time.Time         `json:"resolutionDate,omitempty"`
	AIDescription      string             `json:"aiDescription,omitempty"`
}

// DashboardStats are aggregate counts recomputed by a full scan of the
// dashboard list after every update.
type DashboardStats struct {
	Total    int `json:"totalMarkets"`
	Verified int `json:"verified"`
	Flagged  int `json:"flagged"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`
}

// DashboardState is a point-in-time snapshot of the dashboard, newest
// market first.
type DashboardState struct {
	Markets     []DashboardMarket `json:"markets"`
	LastUpdated time.Time         `json:"lastUpdated"`
	IsPolling   bool              `json:"isPolling"`
	Stats       DashboardStats    `json:"stats"`
}
