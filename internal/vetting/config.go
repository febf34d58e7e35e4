// Package vetting scores enriched profiles against caller criteria and
// assigns quality tiers.
package vetting

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/podreach/leadpipe/internal/model"
)

// Criteria describes what the caller is looking for in a lead.
type Criteria struct {
	IdealDescription string   `mapstructure:"ideal_description" yaml:"ideal_description"`
	RequesterBio     string   `mapstructure:"requester_bio" yaml:"requester_bio"`
	TalkingPoints    []string `mapstructure:"talking_points" yaml:"talking_points"`
}

// Config controls metric weights, tier thresholds, and the consistency gate.
type Config struct {
	// Weights (sum = 1.0).
	EpisodeCountWeight float64 `mapstructure:"episode_count_weight"`
	RecencyWeight      float64 `mapstructure:"recency_weight"`
	ConsistencyWeight  float64 `mapstructure:"consistency_weight"`
	LLMMatchWeight     float64 `mapstructure:"llm_match_weight"`

	// Tier thresholds on the 0-100 composite.
	TierAThreshold float64 `mapstructure:"tier_a_threshold"`
	TierBThreshold float64 `mapstructure:"tier_b_threshold"`
	TierCThreshold float64 `mapstructure:"tier_c_threshold"`

	// Consistency gate rules.
	MinEpisodeCount       int `mapstructure:"min_episode_count"`
	MaxDaysSinceLast      int `mapstructure:"max_days_since_last"`
	MinEpisodesForCadence int `mapstructure:"min_episodes_for_cadence"`

	// Metric curve parameters.
	RecencyThresholdDays int `mapstructure:"recency_threshold_days"`

	// Claude settings.
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`

	// Concurrency across profiles.
	Workers int `mapstructure:"workers"`
}

// DefaultConfig returns a Config with sensible defaults. Weights sum to 1.0.
func DefaultConfig() Config {
	return Config{
		EpisodeCountWeight: 0.20,
		RecencyWeight:      0.20,
		ConsistencyWeight:  0.25,
		LLMMatchWeight:     0.35,

		TierAThreshold: 85,
		TierBThreshold: 65,
		TierCThreshold: 40,

		MinEpisodeCount:       5,
		MaxDaysSinceLast:      180,
		MinEpisodesForCadence: 5,

		RecencyThresholdDays: 90,

		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 512,

		Workers: 4,
	}
}

// WeightSum returns the sum of all metric weights.
func WeightSum(c Config) float64 {
	return c.EpisodeCountWeight + c.RecencyWeight + c.ConsistencyWeight + c.LLMMatchWeight
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	weights := map[string]float64{
		"episode_count_weight": c.EpisodeCountWeight,
		"recency_weight":       c.RecencyWeight,
		"consistency_weight":   c.ConsistencyWeight,
		"llm_match_weight":     c.LLMMatchWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	sum := WeightSum(c)
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	// Weights should be close to 1.0 (allow tolerance for floating-point).
	if math.Abs(sum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1.0, got %.3f", sum))
	}

	// Tier thresholds must be ordered and within the composite range.
	if c.TierAThreshold < c.TierBThreshold || c.TierBThreshold < c.TierCThreshold {
		errs = append(errs, "tier thresholds must satisfy A >= B >= C")
	}
	if c.TierCThreshold < 0 || c.TierAThreshold > 100 {
		errs = append(errs, "tier thresholds must be between 0 and 100")
	}

	// Gate rules.
	if c.MinEpisodeCount < 0 {
		errs = append(errs, "min_episode_count must be >= 0")
	}
	if c.MaxDaysSinceLast < 0 {
		errs = append(errs, "max_days_since_last must be >= 0")
	}
	if c.MinEpisodesForCadence < 2 {
		errs = append(errs, "min_episodes_for_cadence must be >= 2")
	}
	if c.RecencyThresholdDays <= 0 {
		errs = append(errs, "recency_threshold_days must be > 0")
	}

	if c.Model == "" {
		errs = append(errs, "model must be set")
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("vetting: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// weights maps metric names to their configured weights.
func (c Config) weights() map[string]float64 {
	return map[string]float64{
		model.MetricEpisodeCount: c.EpisodeCountWeight,
		model.MetricRecency:      c.RecencyWeight,
		model.MetricConsistency:  c.ConsistencyWeight,
		model.MetricLLMMatch:     c.LLMMatchWeight,
	}
}
