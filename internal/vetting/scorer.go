package vetting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/pkg/anthropic"
)

// Scorer evaluates enriched profiles against caller criteria. Each profile
// gets a composite score and a quality tier; a failing gate forces tier D.
type Scorer struct {
	ai  anthropic.Client
	cfg Config

	now   func() time.Time
	newID func() string
}

// NewScorer creates a Scorer. The anthropic client may be nil, in which case
// the qualitative match metric is always absent.
func NewScorer(ai anthropic.Client, cfg Config) *Scorer {
	return &Scorer{
		ai:    ai,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// VetAll scores profiles concurrently and returns results in profile order.
// Cancellation mid-batch returns the results produced so far.
func (s *Scorer) VetAll(ctx context.Context, profiles []model.EnrichedProfile, crit Criteria) []model.VettingResult {
	log := zap.L().With(zap.String("component", "vetting"))
	log.Info("vetting profiles", zap.Int("count", len(profiles)))

	results := make([]*model.VettingResult, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, p := range profiles {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r := s.VetOne(gctx, p, crit)
			results[i] = &r
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	out := make([]model.VettingResult, 0, len(profiles))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	log.Info("vetting complete", zap.Int("scored", len(out)))
	return out
}

// VetOne scores a single profile. The programmatic stage and the Claude match
// stage run concurrently and are joined before the composite is computed.
func (s *Scorer) VetOne(ctx context.Context, p model.EnrichedProfile, crit Criteria) model.VettingResult {
	log := zap.L().With(zap.String("component", "vetting"), zap.String("lead_id", p.Lead.ID))
	now := s.now()

	var (
		llmScore       float64
		llmExplanation string
		llmErr         error
	)
	llmDone := make(chan struct{})
	go func() {
		defer close(llmDone)
		if s.ai == nil {
			llmErr = model.ErrScoringMetricUnavailable
			return
		}
		llmScore, llmExplanation, llmErr = scoreMatch(ctx, s.ai, s.cfg, p, crit)
	}()

	gate := runGate(s.cfg, p, now)
	scores := programmaticScores(s.cfg, p, now)

	<-llmDone
	if llmErr != nil {
		log.Debug("match metric unavailable", zap.Error(llmErr))
	} else {
		scores[model.MetricLLMMatch] = llmScore
	}

	result := model.VettingResult{
		ID:                s.newID(),
		LeadID:            p.Lead.ID,
		ConsistencyPassed: gate.Passed,
		ConsistencyReason: gate.Reason,
		MetricScores:      scores,
		LLMExplanation:    llmExplanation,
		CreatedAt:         now,
	}

	if len(scores) == 0 {
		result.CompositeScore = model.CompositeScoreUndefined
		result.QualityTier = model.TierUnvetted
		result.Error = "no scoring metric could be evaluated"
		result.FinalExplanation = fmt.Sprintf("Unvetted: %s | Gate: %s", result.Error, gate.Reason)
		log.Warn("profile unvetted", zap.String("reason", result.Error))
		return result
	}

	result.CompositeScore = s.composite(scores)
	result.QualityTier = s.assignTier(result.CompositeScore, gate.Passed)
	result.FinalExplanation = s.explain(result)

	log.Debug("profile vetted",
		zap.Float64("composite", result.CompositeScore),
		zap.String("tier", string(result.QualityTier)))
	return result
}

// composite computes the weighted sum of present metrics normalized to
// 0-100. Weights of absent metrics are redistributed proportionally across
// the present ones.
func (s *Scorer) composite(scores map[string]float64) float64 {
	weights := s.cfg.weights()

	var presentWeight float64
	for name := range scores {
		presentWeight += weights[name]
	}
	if presentWeight <= 0 {
		return 0
	}

	var sum float64
	for name, score := range scores {
		sum += score * (weights[name] / presentWeight)
	}

	return math.Round(clamp(sum, 0, 1) * 100)
}

func (s *Scorer) assignTier(score float64, gatePassed bool) model.Tier {
	if !gatePassed {
		return model.TierD
	}
	switch {
	case score >= s.cfg.TierAThreshold:
		return model.TierA
	case score >= s.cfg.TierBThreshold:
		return model.TierB
	case score >= s.cfg.TierCThreshold:
		return model.TierC
	default:
		return model.TierD
	}
}

// explain renders the tier, metric breakdown, gate reason, and match
// explanation into a single human-readable line.
func (s *Scorer) explain(r model.VettingResult) string {
	parts := []string{
		fmt.Sprintf("Overall Quality Tier: %s (Score: %.0f/100)", r.QualityTier, r.CompositeScore),
		"Breakdown:",
	}

	names := make([]string, 0, len(r.MetricScores))
	for name := range r.MetricScores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, "- "+metricSummary(name, r.MetricScores[name]))
	}

	if r.ConsistencyReason != "" {
		parts = append(parts, "Gate: "+r.ConsistencyReason)
	}
	if r.LLMExplanation != "" {
		parts = append(parts, "Match: "+r.LLMExplanation)
	}

	return strings.Join(parts, " | ")
}

// metricSummary renders one metric score as a short labeled phrase.
func metricSummary(name string, score float64) string {
	var level string
	switch {
	case score >= 0.8:
		level = "Excellent"
	case score >= 0.6:
		level = "Good"
	case score >= 0.4:
		level = "Fair"
	case score > 0:
		level = "Poor"
	default:
		level = "Very poor"
	}
	display := strings.ReplaceAll(name, "_", " ")
	return fmt.Sprintf("%s: %s (%.2f)", display, level, score)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
