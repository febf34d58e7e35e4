package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podreach/leadpipe/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "leadpipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testLead(id, identity, title string) model.Lead {
	return model.Lead{
		ID:                  id,
		Identity:            identity,
		Title:               title,
		FeedURL:             "https://example.com/" + id + "/feed",
		ContributingSources: []string{"listennotes"},
		DateAdded:           time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestSQLite_UpsertLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertLeads(ctx, []model.Lead{
		testLead("l1", "id-1", "First Show"),
		testLead("l2", "id-2", "Second Show"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same identity overwrites instead of duplicating.
	updated := testLead("l1", "id-1", "First Show Renamed")
	_, err = s.UpsertLeads(ctx, []model.Lead{updated})
	require.NoError(t, err)

	leads, err := s.ListLeads(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "First Show Renamed", leads[0].Title)
}

func TestSQLite_UpsertLeads_Empty(t *testing.T) {
	s := newTestStore(t)

	n, err := s.UpsertLeads(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_GetLead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := testLead("l1", "id-1", "First Show")
	_, err := s.UpsertLeads(ctx, []model.Lead{lead})
	require.NoError(t, err)

	got, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "First Show", got.Title)
	assert.True(t, got.DateAdded.Equal(lead.DateAdded))

	_, err = s.GetLead(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrLeadNotFound)
}

func TestSQLite_Profiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := testLead("l1", "id-1", "First Show")
	_, err := s.UpsertLeads(ctx, []model.Lead{lead})
	require.NoError(t, err)

	profile := model.EnrichedProfile{
		Lead:         lead,
		OwnerEmail:   "host@example.com",
		Keywords:     []string{"go", "systems"},
		Metrics:      map[string]float64{"audience_size": 50000},
		DataSources:  []string{"rss", "listennotes"},
		LastEnriched: time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.UpsertProfile(ctx, profile))

	// Overwrite on re-enrichment.
	profile.OwnerEmail = "newhost@example.com"
	require.NoError(t, s.UpsertProfile(ctx, profile))

	got, err := s.ListProfiles(ctx, []string{"l1", "l-unknown"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "newhost@example.com", got[0].OwnerEmail)
	assert.Equal(t, []string{"go", "systems"}, got[0].Keywords)

	none, err := s.ListProfiles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_VettingResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLeads(ctx, []model.Lead{testLead("l1", "id-1", "Show")})
	require.NoError(t, err)

	older := model.VettingResult{
		ID: "v1", LeadID: "l1", CompositeScore: 60, QualityTier: model.TierC,
		CreatedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	newer := model.VettingResult{
		ID: "v2", LeadID: "l1", CompositeScore: 88, QualityTier: model.TierA,
		CreatedAt: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertVettingResults(ctx, []model.VettingResult{newer, older}))

	latest, err := s.LatestVettingResults(ctx)
	require.NoError(t, err)
	require.Contains(t, latest, "l1")
	assert.Equal(t, "v2", latest["l1"].ID)
	assert.Equal(t, model.TierA, latest["l1"].QualityTier)

	require.NoError(t, s.InsertVettingResults(ctx, nil))
}

func TestSQLite_Reviews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertLeads(ctx, []model.Lead{testLead("l1", "id-1", "Show")})
	require.NoError(t, err)

	rec, err := s.GetOrCreateReview(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, rec.Status)
	assert.Nil(t, rec.ReviewedAt)

	// Idempotent: a second read returns the same record.
	again, err := s.GetOrCreateReview(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, rec.LeadID, again.LeadID)
	assert.Equal(t, rec.Status, again.Status)

	_, err = s.GetOrCreateReview(ctx, "ghost")
	assert.ErrorIs(t, err, model.ErrLeadNotFound)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	rec.Status = model.ReviewApproved
	rec.Feedback = "great fit"
	rec.ReviewedAt = &now
	require.NoError(t, s.UpdateReview(ctx, rec))

	got, err := s.GetOrCreateReview(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, got.Status)
	assert.Equal(t, "great fit", got.Feedback)
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, got.ReviewedAt.Equal(now))

	err = s.UpdateReview(ctx, model.ReviewRecord{LeadID: "ghost", Status: model.ReviewApproved})
	assert.ErrorIs(t, err, model.ErrLeadNotFound)
}

func TestSQLite_Preferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prefs, err := s.GetPreferences(ctx, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences("reviewer"), prefs)

	stored := model.UserPreferences{
		UserID:           "reviewer",
		DefaultSortBy:    model.SortScore,
		DefaultSortOrder: model.SortAsc,
		DefaultPageSize:  25,
		SavedFilters: map[string]model.SavedFilter{
			"top tier": {Tier: "A", MinScore: 85},
		},
	}
	require.NoError(t, s.PutPreferences(ctx, stored))

	got, err := s.GetPreferences(ctx, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	// Overwrite.
	stored.DefaultPageSize = 50
	require.NoError(t, s.PutPreferences(ctx, stored))
	got, err = s.GetPreferences(ctx, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, 50, got.DefaultPageSize)
}

func TestSQLite_ListQueueRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead1 := testLead("l1", "id-1", "Vetted Show")
	lead2 := testLead("l2", "id-2", "Bare Show")
	_, err := s.UpsertLeads(ctx, []model.Lead{lead1, lead2})
	require.NoError(t, err)

	require.NoError(t, s.UpsertProfile(ctx, model.EnrichedProfile{
		Lead:         lead1,
		DataSources:  []string{"rss"},
		LastEnriched: time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.InsertVettingResults(ctx, []model.VettingResult{{
		ID: "v1", LeadID: "l1", CompositeScore: 75, QualityTier: model.TierB,
		CreatedAt: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC),
	}}))

	rows, err := s.ListQueueRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]int{rows[0].Lead.ID: 0, rows[1].Lead.ID: 1}
	vetted := rows[byID["l1"]]
	bare := rows[byID["l2"]]

	require.NotNil(t, vetted.Profile)
	require.NotNil(t, vetted.Vetting)
	assert.Equal(t, model.TierB, vetted.Vetting.QualityTier)
	assert.Equal(t, model.ReviewPending, vetted.Review.Status)

	assert.Nil(t, bare.Profile)
	assert.Nil(t, bare.Vetting)
	assert.Equal(t, model.TierUnvetted, bare.Tier())
}
