package model

import "time"

// Tier is the discrete quality bucket assigned after vetting.
type Tier string

const (
	TierA        Tier = "A"
	TierB        Tier = "B"
	TierC        Tier = "C"
	TierD        Tier = "D"
	TierUnvetted Tier = "Unvetted"
)

// CompositeScoreUndefined is the sentinel stored when no metric could be
// evaluated. Never compared against tier thresholds.
const CompositeScoreUndefined = -1

// Canonical vetting metric names.
const (
	MetricEpisodeCount = "episode_count"
	MetricRecency      = "recency"
	MetricConsistency  = "consistency"
	MetricLLMMatch     = "llm_match"
)

// VettingResult is one vetting run's verdict for one profile. Immutable
// after creation; re-vetting appends a new result.
type VettingResult struct {
	ID                string `json:"id"`
	LeadID            string `json:"lead_id"`
	ConsistencyPassed bool   `json:"programmatic_consistency_passed"`
	ConsistencyReason string `json:"programmatic_consistency_reason"`

	// MetricScores holds 0.0-1.0 sub-scores for metrics that could be
	// evaluated. Absent metrics are missing keys, never zeroes.
	MetricScores   map[string]float64 `json:"metric_scores"`
	LLMExplanation string             `json:"llm_explanation,omitempty"`

	// CompositeScore is 0-100, or CompositeScoreUndefined when unvetted.
	CompositeScore   float64   `json:"composite_score"`
	QualityTier      Tier      `json:"quality_tier"`
	FinalExplanation string    `json:"final_explanation"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Scored reports whether the result carries a defined composite score.
func (r VettingResult) Scored() bool {
	return r.QualityTier != TierUnvetted && r.CompositeScore >= 0
}
