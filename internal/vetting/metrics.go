package vetting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/podreach/leadpipe/internal/model"
)

// gateResult is the outcome of the programmatic consistency gate.
type gateResult struct {
	Passed bool
	Reason string
}

// runGate applies the deterministic consistency checks. A failing gate caps
// the tier at D regardless of the composite score.
func runGate(cfg Config, p model.EnrichedProfile, now time.Time) gateResult {
	var reasons []string

	count := p.EffectiveEpisodeCount()
	if count < cfg.MinEpisodeCount {
		reasons = append(reasons, fmt.Sprintf("episode count %d below minimum %d", count, cfg.MinEpisodeCount))
	}

	if p.LatestEpisode.IsZero() {
		reasons = append(reasons, "no publish date available")
	} else if days := int(now.Sub(p.LatestEpisode).Hours() / 24); days > cfg.MaxDaysSinceLast {
		reasons = append(reasons, fmt.Sprintf("last episode %d days ago exceeds maximum %d", days, cfg.MaxDaysSinceLast))
	}

	if len(p.EpisodeDates) > 0 && len(p.EpisodeDates) < cfg.MinEpisodesForCadence {
		reasons = append(reasons, fmt.Sprintf("only %d dated episodes, need %d to judge cadence", len(p.EpisodeDates), cfg.MinEpisodesForCadence))
	}

	if len(reasons) > 0 {
		return gateResult{Passed: false, Reason: strings.Join(reasons, "; ")}
	}
	return gateResult{Passed: true, Reason: "consistency checks passed"}
}

// programmaticScores evaluates the metric curves that need no external
// service. Metrics the profile lacks data for are omitted, not zero-filled.
func programmaticScores(cfg Config, p model.EnrichedProfile, now time.Time) map[string]float64 {
	scores := make(map[string]float64)

	if count := p.EffectiveEpisodeCount(); count > 0 {
		scores[model.MetricEpisodeCount] = scoreEpisodeCount(count)
	}
	if !p.LatestEpisode.IsZero() {
		scores[model.MetricRecency] = scoreRecency(p.LatestEpisode, now, cfg.RecencyThresholdDays)
	}
	if len(p.EpisodeDates) >= cfg.MinEpisodesForCadence {
		scores[model.MetricConsistency] = scoreConsistency(p.EpisodeDates)
	}

	return scores
}

// scoreEpisodeCount maps a back-catalog size onto a 0-1 curve.
func scoreEpisodeCount(count int) float64 {
	switch {
	case count >= 100:
		return 1.0
	case count >= 50:
		return 0.7
	case count >= 10:
		return 0.4
	default:
		return 0.1
	}
}

// scoreRecency scores how recently the last episode was published against
// the configured threshold.
func scoreRecency(last, now time.Time, thresholdDays int) float64 {
	days := now.Sub(last).Hours() / 24
	t := float64(thresholdDays)
	switch {
	case days < 0:
		// Future publish date, treat as recent.
		return 1.0
	case days <= t/3:
		return 1.0
	case days <= t:
		return 0.7
	case days <= 2*t:
		return 0.3
	default:
		return 0.0
	}
}

// scoreConsistency scores publishing cadence by the mean absolute deviation
// of inter-episode intervals relative to the median interval.
func scoreConsistency(dates []time.Time) float64 {
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	intervals := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i].Sub(sorted[i-1]).Hours()/24)
	}
	if len(intervals) == 0 {
		return 0.0
	}

	med := median(intervals)
	if med <= 0 {
		// Multiple episodes on the same day, avoid division by zero.
		med = 1
	}

	var devSum float64
	for _, iv := range intervals {
		devSum += abs(iv - med)
	}
	relDev := (devSum / float64(len(intervals))) / med

	switch {
	case relDev <= 0.1:
		return 1.0
	case relDev <= 0.3:
		return 0.7
	case relDev <= 0.6:
		return 0.4
	default:
		return 0.1
	}
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
