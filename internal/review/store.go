package review

import (
	"context"

	"github.com/podreach/leadpipe/internal/model"
)

// QueueRow is one lead joined with its enrichment profile, latest vetting
// result, and review record, as surfaced to reviewers.
type QueueRow struct {
	Lead    model.Lead             `json:"lead"`
	Profile *model.EnrichedProfile `json:"profile,omitempty"`
	Vetting *model.VettingResult   `json:"vetting,omitempty"`
	Review  model.ReviewRecord     `json:"review"`
}

// Score returns the composite score for sorting and range filters, or the
// undefined sentinel when the lead has not been vetted.
func (r QueueRow) Score() float64 {
	if r.Vetting == nil {
		return model.CompositeScoreUndefined
	}
	return r.Vetting.CompositeScore
}

// Tier returns the quality tier, or Unvetted when no vetting result exists.
func (r QueueRow) Tier() model.Tier {
	if r.Vetting == nil {
		return model.TierUnvetted
	}
	return r.Vetting.QualityTier
}

// Store is the persistence surface the review service needs.
type Store interface {
	// GetOrCreateReview returns the review record for a lead, lazily
	// inserting a pending record if none exists. Returns
	// ErrLeadNotFound for unknown ids.
	GetOrCreateReview(ctx context.Context, leadID string) (model.ReviewRecord, error)

	// UpdateReview overwrites a lead's review record, last write wins.
	UpdateReview(ctx context.Context, rec model.ReviewRecord) error

	// ListQueueRows returns every lead joined with its profile, latest
	// vetting result, and review record.
	ListQueueRows(ctx context.Context) ([]QueueRow, error)

	// GetPreferences returns a reviewer's stored preferences, or
	// defaults when none are stored.
	GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error)

	// PutPreferences stores a reviewer's preferences.
	PutPreferences(ctx context.Context, prefs model.UserPreferences) error
}
