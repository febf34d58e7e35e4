// Package store persists leads, enriched profiles, vetting results, review
// records, and reviewer preferences. Two backends: SQLite for local runs,
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

// Store defines the persistence interface for the lead pipeline. It also
// satisfies review.Store.
type Store interface {
	// Leads
	UpsertLeads(ctx context.Context, leads []model.Lead) (int, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context) ([]model.Lead, error)

	// Enriched profiles, one per lead, overwritten on re-enrichment.
	UpsertProfile(ctx context.Context, profile model.EnrichedProfile) error
	ListProfiles(ctx context.Context, leadIDs []string) ([]model.EnrichedProfile, error)

	// Vetting results are append-only; re-vetting inserts a new row.
	InsertVettingResults(ctx context.Context, results []model.VettingResult) error
	LatestVettingResults(ctx context.Context) (map[string]model.VettingResult, error)

	// Review records and queue rows.
	GetOrCreateReview(ctx context.Context, leadID string) (model.ReviewRecord, error)
	UpdateReview(ctx context.Context, rec model.ReviewRecord) error
	ListQueueRows(ctx context.Context) ([]review.QueueRow, error)

	// Reviewer preferences.
	GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error)
	PutPreferences(ctx context.Context, prefs model.UserPreferences) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// queueReader is the subset of Store the queue-row assembly needs.
type queueReader interface {
	ListLeads(ctx context.Context) ([]model.Lead, error)
	ListProfiles(ctx context.Context, leadIDs []string) ([]model.EnrichedProfile, error)
	LatestVettingResults(ctx context.Context) (map[string]model.VettingResult, error)
	GetOrCreateReview(ctx context.Context, leadID string) (model.ReviewRecord, error)
}

// assembleQueueRows joins every lead with its profile, latest vetting
// result, and review record, lazily creating pending review records the
// first time a lead is surfaced.
func assembleQueueRows(ctx context.Context, s queueReader) ([]review.QueueRow, error) {
	leads, err := s.ListLeads(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}

	profiles, err := s.ListProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	profileByLead := make(map[string]model.EnrichedProfile, len(profiles))
	for _, p := range profiles {
		profileByLead[p.Lead.ID] = p
	}

	vetting, err := s.LatestVettingResults(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]review.QueueRow, 0, len(leads))
	for _, lead := range leads {
		rec, err := s.GetOrCreateReview(ctx, lead.ID)
		if err != nil {
			return nil, err
		}
		row := review.QueueRow{Lead: lead, Review: rec}
		if p, ok := profileByLead[lead.ID]; ok {
			row.Profile = &p
		}
		if v, ok := vetting[lead.ID]; ok {
			row.Vetting = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
