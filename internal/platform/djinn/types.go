package djinn

import (
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// APIMarket represents a market as returned by the Djinn registry API.
// Timestamps are Unix milliseconds on the wire.
type APIMarket struct {
	PublicKey     string  `json:"publicKey"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	SourceURL     string  `json:"sourceUrl"`
	Category      string  `json:"category"`
	CreatedAt     int64   `json:"createdAt"`
	ExpiresAt     int64   `json:"expiresAt,omitempty"`
	FeesCollected float64 `json:"feesCollected"`

	Creator struct {
		Wallet      string `json:"wallet"`
		DisplayName string `json:"displayName"`
	} `json:"creator"`

	Pool struct {
		YesShares      float64 `json:"yesShares"`
		NoShares       float64 `json:"noShares"`
		TotalLiquidity float64 `json:"totalLiquidity"`
	} `json:"pool"`

	// Social-claim fields, present only on Twitter-contingent markets.
	TwitterMarketType string `json:"twitter_market_type,omitempty"`
	TargetUsername    string `json:"target_username,omitempty"`
	TargetKeyword     string `json:"target_keyword,omitempty"`
	TargetTweetID     string `json:"target_tweet_id,omitempty"`
	MetricThreshold   int    `json:"metric_threshold,omitempty"`
}

// ToDomainMarket converts an APIMarket to a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	out := domain.Market{
		ID:            m.PublicKey,
		Title:         m.Title,
		Description:   m.Description,
		SourceURL:     m.SourceURL,
		Category:      m.Category,
		FeesCollected: m.FeesCollected,
		CreatedAt:     time.UnixMilli(m.CreatedAt),
		Creator: domain.Creator{
			Wallet:      m.Creator.Wallet,
			DisplayName: m.Creator.DisplayName,
		},
		Pool: domain.Pool{
			YesShares:      m.Pool.YesShares,
			NoShares:       m.Pool.NoShares,
			TotalLiquidity: m.Pool.TotalLiquidity,
		},
		TargetUsername:  m.TargetUsername,
		TargetKeyword:   m.TargetKeyword,
		TargetTweetID:   m.TargetTweetID,
		MetricThreshold: m.MetricThreshold,
	}

	if m.ExpiresAt > 0 {
		t := time.UnixMilli(m.ExpiresAt)
		out.ExpiresAt = &t
	}

	if m.TwitterMarketType == string(domain.SocialMetricThreshold) {
		out.SocialType = domain.SocialMetricThreshold
	} else if out.IsSocial() {
		out.SocialType = domain.SocialKeywordMention
	}

	return out
}

// marketsResponse is the envelope of GET /markets.
type marketsResponse struct {
	Success bool        `json:"success"`
	Markets []APIMarket `json:"markets"`
}

// marketResponse is the envelope of GET /markets/{id}.
type marketResponse struct {
	Success bool      `json:"success"`
	Market  APIMarket `json:"market"`
}

// successResponse is the generic mutation envelope.
type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// verdictUpdate is the payload of PUT /markets pushing a verdict.
type verdictUpdate struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ResolutionDate *int64 `json:"resolutionDate"`
}

// refundRequest is the payload of POST /markets/{id}/refund.
type refundRequest struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requestedBy"`
	RequestID   string `json:"requestId"`
}
