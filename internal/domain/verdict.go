package domain

import "time"

// FinalStatus is the terminal outcome of the 3-stage pipeline.
type FinalStatus string

const (
	FinalVerified FinalStatus = "VERIFIED"
	FinalFlagged  FinalStatus = "FLAGGED"
	FinalRejected FinalStatus = "REJECTED"
)

// VerdictAction is what the registry should do with the market.
type VerdictAction string

const (
	ActionApprove         VerdictAction = "APPROVE"
	ActionManualReview    VerdictAction = "MANUAL_REVIEW"
	ActionRefundAndDelete VerdictAction = "REFUND_AND_DELETE"
)

// EvidenceReport is the Hunter stage output: a best-effort evidence bundle.
// An unreachable source sets SourceAccessible=false instead of failing.
type EvidenceReport struct {
	SourceAccessible     bool     `json:"sourceAccessible"`
	ExtractedFacts       []string `json:"extractedFacts"`
	NewsArticles         []string `json:"newsArticles"`
	SocialMentions       []string `json:"socialMentions"`
	HasEnoughInformation bool     `json:"hasEnoughInformation"`
	Summary              string   `json:"summary"`
	ProcessingTime       time.Duration
}

// AnalysisReport is the Analyst stage output, backed by an LLM judgment of
// the market against the gathered evidence.
type AnalysisReport struct {
	ConfidenceScore   int      `json:"confidenceScore"` // 0..100
	RiskFlags         []string `json:"riskFlags"`
	IsResolvable      bool     `json:"isResolvable"`
	IsObjective       bool     `json:"isObjective"`
	HasVerifiableDate bool     `json:"hasVerifiableDate"`
	Reasoning         string   `json:"reasoning"`
	ProcessingTime    time.Duration
}

// JudgeVerdict is the Judge stage's binary call.
type JudgeVerdict string

const (
	JudgeApproved JudgeVerdict = "APPROVED"
	JudgeRejected JudgeVerdict = "REJECTED"
)

// JudgeReport is the Judge stage output: the final call plus the metadata
// that flows back onto the market listing.
type JudgeReport struct {
	FinalVerdict         JudgeVerdict `json:"finalVerdict"`
	CheckmarkEarned      bool         `json:"checkmarkEarned"`
	Category             string       `json:"category"`
	GeneratedDescription string       `json:"generatedDescription"`
	Reasoning            string       `json:"reasoning"`
	ProcessingTime       time.Duration
}

// EngineOutcome is the pipeline's aggregate classification of a market,
// before mapping onto the verdict schema.
type EngineOutcome string

const (
	OutcomeVerified  EngineOutcome = "VERIFIED"
	OutcomeUncertain EngineOutcome = "UNCERTAIN"
	OutcomeRejected  EngineOutcome = "REJECTED"
)

// EngineResult bundles the three stage reports with the aggregate outcome
// and score. Every field is populated even on partial stage failure.
type EngineResult struct {
	Outcome    EngineOutcome
	FinalScore int
	Evidence   EvidenceReport
	Analysis   AnalysisReport
	Judgment   JudgeReport
}

// Verdict is the finalized output of the pipeline for one market. Created
// exactly once at pipeline completion and immutable afterwards.
type Verdict struct {
	MarketID    string    `json:"marketId"`
	MarketTitle string    `json:"marketTitle"`
	Timestamp   time.Time `json:"timestamp"`

	Layer1 EvidenceReport `json:"layer1"`
	Layer2 AnalysisReport `json:"layer2"`
	Layer3 JudgeReport    `json:"layer3"`

	FinalStatus    FinalStatus   `json:"finalStatus"`
	Action         VerdictAction `json:"action"`
	Checkmark      bool          `json:"checkmark"`
	Category       string        `json:"category"`
	AIDescription  string        `json:"aiDescription"`
	ResolutionDate *time.Time    `json:"resolutionDate,omitempty"`

	TotalProcessingTime time.Duration `json:"totalProcessingTime"`
	VerifiedAt          *time.Time    `json:"verifiedAt,omitempty"`
}

// DashboardStatus maps the final status onto the dashboard lifecycle state.
func (s FinalStatus) DashboardStatus() VerificationStatus {
	switch s {
	case FinalVerified:
		return StatusVerified
	case FinalFlagged:
		return StatusFlagged
	default:
		return StatusRejected
	}
}
