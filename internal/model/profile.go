package model

import "time"

// SourceDomain names the data domain an enrichment fragment covers. A
// fragment's domain decides which platform metrics it is authoritative for.
type SourceDomain string

const (
	DomainRSS      SourceDomain = "rss"
	DomainSocial   SourceDomain = "social"
	DomainAudience SourceDomain = "audience"
)

// EnrichmentFragment is a partial attribute set from one secondary source
// for one lead. Transient: consumed by the merger, never persisted.
type EnrichmentFragment struct {
	Source       string              `json:"source"`
	Domain       SourceDomain        `json:"domain"`
	FetchedAt    time.Time           `json:"fetched_at"`
	Scalars      map[string]string   `json:"scalars,omitempty"`
	Lists        map[string][]string `json:"lists,omitempty"`
	Metrics      map[string]float64  `json:"metrics,omitempty"`
	EpisodeDates []time.Time         `json:"episode_dates,omitempty"`
}

// Empty reports whether the fragment carries no data at all.
func (f EnrichmentFragment) Empty() bool {
	return len(f.Scalars) == 0 && len(f.Lists) == 0 &&
		len(f.Metrics) == 0 && len(f.EpisodeDates) == 0
}

// SoftFailure records an enrichment call that failed without aborting the
// merge. Kept on the profile as provenance.
type SoftFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// EnrichedProfile is a lead plus the attribute groups merged from
// enrichment fragments. Field names here are the export contract.
type EnrichedProfile struct {
	Lead Lead `json:"lead"`

	// Scalars merged from fragments (lead value wins unless empty).
	OwnerName  string `json:"owner_name,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
	Explicit   string `json:"explicit,omitempty"`

	// List-valued fields, order-preserving union.
	Keywords  []string `json:"keywords,omitempty"`
	HostNames []string `json:"host_names,omitempty"`

	// Platform metrics keyed by canonical metric name
	// (twitter_followers, instagram_followers, audience_size, ...).
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Social profile URLs keyed by platform.
	SocialURLs map[string]string `json:"social_urls,omitempty"`

	// Cadence data derived from the feed.
	EpisodeDates            []time.Time `json:"episode_dates,omitempty"`
	LatestEpisode           time.Time   `json:"latest_episode,omitempty"`
	AverageDurationSec      float64     `json:"average_duration_sec,omitempty"`
	PublishingFrequencyDays float64     `json:"publishing_frequency_days,omitempty"`

	DataSources  []string      `json:"data_sources"`
	SoftFailures []SoftFailure `json:"soft_failures,omitempty"`
	LastEnriched time.Time     `json:"last_enriched_timestamp"`
}

// EffectiveEpisodeCount prefers the discovery-time count, falling back to
// the number of dated episodes seen in the feed.
func (p EnrichedProfile) EffectiveEpisodeCount() int {
	if p.Lead.EpisodeCount > 0 {
		return p.Lead.EpisodeCount
	}
	return len(p.EpisodeDates)
}
