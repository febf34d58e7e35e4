// Package enrich fans enrichment calls out across secondary sources and
// merges the resulting fragments into one profile per lead.
package enrich

import (
	"sort"
	"strings"
	"time"

	"github.com/podreach/leadpipe/internal/model"
)

// Scalar fragment keys that fill gaps in the lead itself.
const (
	keyTitle       = "title"
	keyDescription = "description"
	keyWebsite     = "website"
	keyEmail       = "email"
	keyLanguage    = "language"
	keyAuthor      = "author"
	keyOwnerName   = "owner_name"
	keyOwnerEmail  = "owner_email"
	keyExplicit    = "explicit"
)

// List fragment keys.
const (
	keyKeywords   = "keywords"
	keyCategories = "categories"
	keyHostNames  = "host_names"
)

// metricAuthority maps a metric name to the source domain authoritative
// for it.
var metricAuthority = map[string]model.SourceDomain{
	"twitter_followers":     model.DomainSocial,
	"twitter_following":     model.DomainSocial,
	"instagram_followers":   model.DomainSocial,
	"tiktok_followers":      model.DomainSocial,
	"youtube_subscribers":   model.DomainSocial,
	"facebook_likes":        model.DomainSocial,
	"linkedin_connections":  model.DomainSocial,
	"twitter_engagement":    model.DomainSocial,
	"audience_size":         model.DomainAudience,
	"listen_score":          model.DomainAudience,
	"itunes_rating_average": model.DomainAudience,
	"average_duration_sec":  model.DomainRSS,
}

// Merge combines a lead with zero or more enrichment fragments into an
// EnrichedProfile. Pure and deterministic: fragment input order is the
// provider registration order, and all conflicts resolve by the per-group
// policy (lead-first scalars, union lists, authoritative-domain metrics).
func Merge(lead model.Lead, fragments []model.EnrichmentFragment, failures []model.SoftFailure, now time.Time) model.EnrichedProfile {
	p := model.EnrichedProfile{
		Lead:         lead,
		SoftFailures: failures,
		LastEnriched: now.UTC(),
	}

	contributed := make(map[string]bool)

	mergeScalars(&p, fragments, contributed)
	mergeLists(&p, fragments, contributed)
	mergeMetrics(&p, fragments, contributed)
	mergeEpisodes(&p, fragments, contributed)

	for _, f := range fragments {
		if contributed[f.Source] {
			p.DataSources = append(p.DataSources, f.Source)
		}
	}
	return p
}

// mergeScalars fills empty scalar slots with the first non-empty fragment
// value. The lead's own value always wins when present. Unrecognized keys
// ending in "_url" collect into SocialURLs keyed by platform.
func mergeScalars(p *model.EnrichedProfile, fragments []model.EnrichmentFragment, contributed map[string]bool) {
	targets := map[string]*string{
		keyTitle:       &p.Lead.Title,
		keyDescription: &p.Lead.Description,
		keyWebsite:     &p.Lead.Website,
		keyEmail:       &p.Lead.Email,
		keyLanguage:    &p.Lead.Language,
		keyAuthor:      &p.Lead.Author,
		keyOwnerName:   &p.OwnerName,
		keyOwnerEmail:  &p.OwnerEmail,
		keyExplicit:    &p.Explicit,
	}

	for _, f := range fragments {
		for key, val := range f.Scalars {
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			if slot, ok := targets[key]; ok {
				if *slot == "" {
					*slot = val
					contributed[f.Source] = true
				}
				continue
			}
			if platform, ok := strings.CutSuffix(key, "_url"); ok {
				if p.SocialURLs == nil {
					p.SocialURLs = make(map[string]string)
				}
				if p.SocialURLs[platform] == "" {
					p.SocialURLs[platform] = val
					contributed[f.Source] = true
				}
			}
		}
	}
}

// mergeLists unions list values preserving first-seen order, lead values
// first.
func mergeLists(p *model.EnrichedProfile, fragments []model.EnrichmentFragment, contributed map[string]bool) {
	p.Lead.Categories = unionLists(p.Lead.Categories, keyCategories, fragments, contributed)
	p.Keywords = unionLists(nil, keyKeywords, fragments, contributed)
	p.HostNames = unionLists(nil, keyHostNames, fragments, contributed)
}

func unionLists(base []string, key string, fragments []model.EnrichmentFragment, contributed map[string]bool) []string {
	out := make([]string, 0, len(base))
	seen := make(map[string]bool)
	for _, v := range base {
		if v != "" && !seen[strings.ToLower(v)] {
			seen[strings.ToLower(v)] = true
			out = append(out, v)
		}
	}
	for _, f := range fragments {
		for _, v := range f.Lists[key] {
			v = strings.TrimSpace(v)
			if v == "" || seen[strings.ToLower(v)] {
				continue
			}
			seen[strings.ToLower(v)] = true
			out = append(out, v)
			contributed[f.Source] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeMetrics resolves each numeric metric to the fragment whose domain
// is authoritative for it; same-domain conflicts go to the most recently
// fetched fragment. Metrics without an authoritative fragment fall back to
// the freshest fragment of any domain.
func mergeMetrics(p *model.EnrichedProfile, fragments []model.EnrichmentFragment, contributed map[string]bool) {
	type candidate struct {
		value     float64
		fetchedAt time.Time
		source    string
		domain    model.SourceDomain
	}
	best := make(map[string]candidate)

	for _, f := range fragments {
		for name, val := range f.Metrics {
			c := candidate{value: val, fetchedAt: f.FetchedAt, source: f.Source, domain: f.Domain}
			cur, ok := best[name]
			if !ok {
				best[name] = c
				continue
			}

			authority, ranked := metricAuthority[name]
			curAuth := ranked && cur.domain == authority
			newAuth := ranked && c.domain == authority
			switch {
			case newAuth && !curAuth:
				best[name] = c
			case newAuth == curAuth && c.fetchedAt.After(cur.fetchedAt):
				best[name] = c
			}
		}
	}

	if len(best) == 0 {
		return
	}
	p.Metrics = make(map[string]float64, len(best))
	names := make([]string, 0, len(best))
	for name := range best {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := best[name]
		p.Metrics[name] = c.value
		contributed[c.source] = true
	}
}

// mergeEpisodes takes episode dates from the freshest RSS-domain fragment
// and derives cadence fields from them.
func mergeEpisodes(p *model.EnrichedProfile, fragments []model.EnrichmentFragment, contributed map[string]bool) {
	var winner *model.EnrichmentFragment
	for i := range fragments {
		f := &fragments[i]
		if len(f.EpisodeDates) == 0 || f.Domain != model.DomainRSS {
			continue
		}
		if winner == nil || f.FetchedAt.After(winner.FetchedAt) {
			winner = f
		}
	}
	if winner == nil {
		return
	}

	dates := append([]time.Time(nil), winner.EpisodeDates...)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	p.EpisodeDates = dates
	p.LatestEpisode = dates[len(dates)-1]
	if freq, ok := publishingFrequency(dates); ok {
		p.PublishingFrequencyDays = freq
	}
	if avg, ok := winner.Metrics["average_duration_sec"]; ok {
		p.AverageDurationSec = avg
	}
	contributed[winner.Source] = true
}

// publishingFrequency estimates the mean days between consecutive
// episodes. Needs at least two dated episodes.
func publishingFrequency(sorted []time.Time) (float64, bool) {
	if len(sorted) < 2 {
		return 0, false
	}
	span := sorted[len(sorted)-1].Sub(sorted[0])
	days := span.Hours() / 24 / float64(len(sorted)-1)
	return days, true
}
