package review

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podreach/leadpipe/internal/model"
)

var reviewNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	rows    []QueueRow
	reviews map[string]model.ReviewRecord
	prefs   map[string]model.UserPreferences
}

func newFakeStore(rows ...QueueRow) *fakeStore {
	f := &fakeStore{
		rows:    rows,
		reviews: make(map[string]model.ReviewRecord),
		prefs:   make(map[string]model.UserPreferences),
	}
	for _, r := range rows {
		f.reviews[r.Lead.ID] = r.Review
	}
	return f
}

func (f *fakeStore) GetOrCreateReview(_ context.Context, leadID string) (model.ReviewRecord, error) {
	if rec, ok := f.reviews[leadID]; ok {
		return rec, nil
	}
	for _, r := range f.rows {
		if r.Lead.ID == leadID {
			rec := model.ReviewRecord{LeadID: leadID, Status: model.ReviewPending, CreatedAt: reviewNow}
			f.reviews[leadID] = rec
			return rec, nil
		}
	}
	return model.ReviewRecord{}, eris.Wrapf(model.ErrLeadNotFound, "lead %s", leadID)
}

func (f *fakeStore) UpdateReview(_ context.Context, rec model.ReviewRecord) error {
	f.reviews[rec.LeadID] = rec
	return nil
}

func (f *fakeStore) ListQueueRows(_ context.Context) ([]QueueRow, error) {
	out := make([]QueueRow, len(f.rows))
	copy(out, f.rows)
	for i := range out {
		if rec, ok := f.reviews[out[i].Lead.ID]; ok {
			out[i].Review = rec
		}
	}
	return out, nil
}

func (f *fakeStore) GetPreferences(_ context.Context, userID string) (model.UserPreferences, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return model.DefaultPreferences(userID), nil
}

func (f *fakeStore) PutPreferences(_ context.Context, prefs model.UserPreferences) error {
	f.prefs[prefs.UserID] = prefs
	return nil
}

func newTestService(rows ...QueueRow) (*Service, *fakeStore) {
	store := newFakeStore(rows...)
	svc := NewService(store)
	svc.now = func() time.Time { return reviewNow }
	return svc, store
}

func pendingRow(id string) QueueRow {
	return QueueRow{
		Lead:   model.Lead{ID: id, Identity: "identity-" + id, Title: "Show " + id, DateAdded: reviewNow},
		Review: model.ReviewRecord{LeadID: id, Status: model.ReviewPending, CreatedAt: reviewNow},
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.ReviewStatus
		want     bool
	}{
		{model.ReviewPending, model.ReviewApproved, true},
		{model.ReviewPending, model.ReviewRejected, true},
		{model.ReviewApproved, model.ReviewRejected, true},
		{model.ReviewRejected, model.ReviewApproved, true},
		{model.ReviewApproved, model.ReviewApproved, true},
		{model.ReviewRejected, model.ReviewRejected, true},
		{model.ReviewApproved, model.ReviewPending, false},
		{model.ReviewRejected, model.ReviewPending, false},
		{model.ReviewPending, model.ReviewPending, false},
		{model.ReviewStatus("bogus"), model.ReviewApproved, false},
		{model.ReviewPending, model.ReviewStatus("bogus"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDecide_Approve(t *testing.T) {
	svc, store := newTestService(pendingRow("l1"))

	rec, err := svc.Decide(context.Background(), "l1", true, "good fit")
	require.NoError(t, err)

	assert.Equal(t, model.ReviewApproved, rec.Status)
	assert.Equal(t, "good fit", rec.Feedback)
	require.NotNil(t, rec.ReviewedAt)
	assert.Equal(t, reviewNow, *rec.ReviewedAt)
	assert.Equal(t, rec, store.reviews["l1"])
}

func TestDecide_ReReviewRestamps(t *testing.T) {
	svc, store := newTestService(pendingRow("l1"))

	_, err := svc.Decide(context.Background(), "l1", true, "")
	require.NoError(t, err)

	later := reviewNow.Add(time.Hour)
	svc.now = func() time.Time { return later }

	rec, err := svc.Decide(context.Background(), "l1", false, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, rec.Status)
	assert.Equal(t, later, *rec.ReviewedAt)
	assert.Equal(t, model.ReviewRejected, store.reviews["l1"].Status)
}

func TestDecide_LazilyCreatesRecord(t *testing.T) {
	svc, store := newTestService(pendingRow("l1"))
	delete(store.reviews, "l1")

	rec, err := svc.Decide(context.Background(), "l1", false, "")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, rec.Status)
}

func TestDecide_UnknownLead(t *testing.T) {
	svc, _ := newTestService(pendingRow("l1"))

	_, err := svc.Decide(context.Background(), "nope", true, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLeadNotFound)
}

func TestBulkDecide_PartialSuccess(t *testing.T) {
	svc, _ := newTestService(pendingRow("l1"), pendingRow("l2"), pendingRow("l3"))

	out, err := svc.BulkDecide(context.Background(), []string{"l1", "ghost-1", "l2", "ghost-2", "l3"}, true, "batch")
	require.NoError(t, err)

	assert.Equal(t, 5, out.Processed)
	assert.Equal(t, 3, out.Succeeded)
	assert.Equal(t, 2, out.Failed)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, "ghost-1", out.Failures[0].LeadID)
	assert.Equal(t, "ghost-2", out.Failures[1].LeadID)
}

func TestBulkDecide_Empty(t *testing.T) {
	svc, _ := newTestService()

	out, err := svc.BulkDecide(context.Background(), nil, true, "")
	require.NoError(t, err)
	assert.Equal(t, BulkOutcome{}, out)
}

func TestBulkDecide_Cancelled(t *testing.T) {
	svc, _ := newTestService(pendingRow("l1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.BulkDecide(ctx, []string{"l1"}, true, "")
	assert.Error(t, err)
}

func TestSavePreferences_Validation(t *testing.T) {
	svc, store := newTestService()

	err := svc.SavePreferences(context.Background(), model.UserPreferences{})
	assert.Error(t, err)

	err = svc.SavePreferences(context.Background(), model.UserPreferences{
		UserID:        "reviewer",
		DefaultSortBy: model.SortField("bogus"),
	})
	assert.Error(t, err)

	prefs := model.UserPreferences{
		UserID:           "reviewer",
		DefaultSortBy:    model.SortScore,
		DefaultSortOrder: model.SortAsc,
		DefaultPageSize:  25,
		SavedFilters: map[string]model.SavedFilter{
			"top": {Tier: "A", MinScore: 85},
		},
	}
	require.NoError(t, svc.SavePreferences(context.Background(), prefs))
	assert.Equal(t, prefs, store.prefs["reviewer"])

	got, err := svc.Preferences(context.Background(), "reviewer")
	require.NoError(t, err)
	assert.Equal(t, prefs, got)
}
