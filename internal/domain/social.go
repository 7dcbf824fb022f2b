package domain

import "time"

// SocialMarket is a registry entry for a market whose resolution depends on
// an external social-media event. Created on registration and removed
// exactly once, at the moment the market resolves YES or NO.
type SocialMarket struct {
	MarketID        string           `json:"marketId"`
	Title           string           `json:"title"`
	Type            SocialMarketType `json:"type"`
	TargetUsername  string           `json:"targetUsername,omitempty"`
	TargetKeyword   string           `json:"targetKeyword,omitempty"`
	TargetTweetID   string           `json:"targetTweetId,omitempty"`
	MetricThreshold int              `json:"metricThreshold,omitempty"`
	ExpiresAt       time.Time        `json:"expiresAt"`
}

// DefaultSocialDeadline is applied when a social market carries no expiry.
const DefaultSocialDeadline = 7 * 24 * time.Hour

// ExtractSocialMarket pulls the social-claim fields out of a market.
// It returns false when the market is not social.
func ExtractSocialMarket(m Market, now time.Time) (SocialMarket, bool) {
	if !m.IsSocial() {
		return SocialMarket{}, false
	}

	typ := SocialKeywordMention
	if m.SocialType == SocialMetricThreshold {
		typ = SocialMetricThreshold
	}

	expires := now.Add(DefaultSocialDeadline)
	if m.ExpiresAt != nil {
		expires = *m.ExpiresAt
	}

	return SocialMarket{
		MarketID:        m.ID,
		Title:           m.Title,
		Type:            typ,
		TargetUsername:  m.TargetUsername,
		TargetKeyword:   m.TargetKeyword,
		TargetTweetID:   m.TargetTweetID,
		MetricThreshold: m.MetricThreshold,
		ExpiresAt:       expires,
	}, true
}

// ResolutionResult is the outcome of a single social resolution check.
type ResolutionResult string

const (
	ResolutionYes       ResolutionResult = "YES"
	ResolutionNo        ResolutionResult = "NO"
	ResolutionPending   ResolutionResult = "PENDING"
	ResolutionUncertain ResolutionResult = "UNCERTAIN"
)

// ResolutionReport is produced per poll check and never stored.
type ResolutionReport struct {
	Result            ResolutionResult `json:"result"`
	Evidence          string           `json:"evidence"`
	IsEarlyResolution bool             `json:"isEarlyResolution"`
}

// SocialMarketStatus describes one tracked social market for the status API.
type SocialMarketStatus struct {
	MarketID    string    `json:"marketId"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	Target      string    `json:"target"`
	HoursLeft   float64   `json:"hoursLeft"`
	LastChecked time.Time `json:"lastChecked"`
	NextDue     time.Time `json:"nextDue"`
}
