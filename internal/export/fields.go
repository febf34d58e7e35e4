// Package export writes approved leads, joined with their enrichment
// profile and latest vetting result, to CSV or XLSX files.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/podreach/leadpipe/internal/review"
)

// columns is the ordered export header. Column order is part of the export
// contract; downstream CRM imports map by position.
var columns = []string{
	"Name",
	"Feed URL",
	"Website",
	"Author",
	"Contact Email",
	"Categories",
	"Episode Count",
	"Audience Size",
	"Latest Episode",
	"Publishing Frequency (days)",
	"Composite Score",
	"Quality Tier",
	"Review Status",
	"Review Feedback",
	"Data Sources",
	"Date Added",
}

// buildRow maps one queue row onto the export columns.
func buildRow(r review.QueueRow) []string {
	lead := r.Lead

	email := lead.Email
	var latestEpisode, frequency, sources string
	if r.Profile != nil {
		if r.Profile.OwnerEmail != "" {
			email = r.Profile.OwnerEmail
		}
		if !r.Profile.LatestEpisode.IsZero() {
			latestEpisode = r.Profile.LatestEpisode.UTC().Format(time.RFC3339)
		}
		if r.Profile.PublishingFrequencyDays > 0 {
			frequency = fmt.Sprintf("%.1f", r.Profile.PublishingFrequencyDays)
		}
		sources = strings.Join(r.Profile.DataSources, "; ")
	}

	var score, tier string
	if r.Vetting != nil {
		if r.Vetting.Scored() {
			score = strconv.FormatFloat(r.Vetting.CompositeScore, 'f', 0, 64)
		}
		tier = string(r.Vetting.QualityTier)
	}

	return []string{
		lead.Title,
		lead.FeedURL,
		lead.Website,
		lead.Author,
		email,
		strings.Join(lead.Categories, "; "),
		strconv.Itoa(lead.EpisodeCount),
		strconv.Itoa(lead.AudienceSize),
		latestEpisode,
		frequency,
		score,
		tier,
		string(r.Review.Status),
		r.Review.Feedback,
		sources,
		lead.DateAdded.UTC().Format(time.RFC3339),
	}
}
