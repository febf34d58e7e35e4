package review

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podreach/leadpipe/internal/model"
)

func vettedRow(id, title string, score float64, tier model.Tier, addedDaysAgo int, status model.ReviewStatus) QueueRow {
	return QueueRow{
		Lead: model.Lead{
			ID:        id,
			Identity:  "identity-" + id,
			Title:     title,
			DateAdded: reviewNow.AddDate(0, 0, -addedDaysAgo),
		},
		Vetting: &model.VettingResult{LeadID: id, CompositeScore: score, QualityTier: tier},
		Review:  model.ReviewRecord{LeadID: id, Status: status, CreatedAt: reviewNow},
	}
}

func queueFixture() []QueueRow {
	return []QueueRow{
		vettedRow("l1", "Alpha Cast", 92, model.TierA, 4, model.ReviewPending),
		vettedRow("l2", "Bravo Banter", 70, model.TierB, 3, model.ReviewApproved),
		vettedRow("l3", "Charlie Chat", 45, model.TierC, 2, model.ReviewPending),
		vettedRow("l4", "Delta Dispatch", 20, model.TierD, 1, model.ReviewRejected),
		{
			Lead:   model.Lead{ID: "l5", Identity: "identity-l5", Title: "Echo Hour", DateAdded: reviewNow},
			Review: model.ReviewRecord{LeadID: "l5", Status: model.ReviewPending, CreatedAt: reviewNow},
		},
	}
}

func TestQueue_DefaultsNewestFirst(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	page, err := svc.Queue(context.Background(), QueueQuery{})
	require.NoError(t, err)

	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "l5", page.Items[0].Lead.ID)
	assert.Equal(t, "l1", page.Items[4].Lead.ID)
}

func TestQueue_FilterTier(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	page, err := svc.Queue(context.Background(), QueueQuery{FilterTier: "A"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "l1", page.Items[0].Lead.ID)

	// Rows without a vetting result surface as Unvetted.
	page, err = svc.Queue(context.Background(), QueueQuery{FilterTier: string(model.TierUnvetted)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "l5", page.Items[0].Lead.ID)
}

func TestQueue_FilterStatus(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	page, err := svc.Queue(context.Background(), QueueQuery{FilterStatus: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestQueue_ScoreRangeExcludesUnvetted(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	min, max := 40.0, 90.0
	page, err := svc.Queue(context.Background(), QueueQuery{MinScore: &min, MaxScore: &max})
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		assert.NotEqual(t, "l5", item.Lead.ID)
	}
}

func TestQueue_Search(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	page, err := svc.Queue(context.Background(), QueueQuery{SearchTerm: "  BRAVO "})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "l2", page.Items[0].Lead.ID)
}

func TestQueue_SortByScore(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	page, err := svc.Queue(context.Background(), QueueQuery{SortBy: model.SortScore, SortOrder: model.SortDesc})
	require.NoError(t, err)

	require.Len(t, page.Items, 5)
	assert.Equal(t, "l1", page.Items[0].Lead.ID)
	// Unvetted sorts below every defined score.
	assert.Equal(t, "l5", page.Items[4].Lead.ID)
}

func TestQueue_SortByName(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	page, err := svc.Queue(context.Background(), QueueQuery{SortBy: model.SortName, SortOrder: model.SortAsc})
	require.NoError(t, err)

	titles := make([]string, len(page.Items))
	for i, item := range page.Items {
		titles[i] = item.Lead.Title
	}
	assert.Equal(t, []string{"Alpha Cast", "Bravo Banter", "Charlie Chat", "Delta Dispatch", "Echo Hour"}, titles)
}

func TestQueue_Pagination(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	q := QueueQuery{SortBy: model.SortDateAdded, SortOrder: model.SortAsc, PageSize: 2}

	q.Page = 1
	p1, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 3, p1.TotalPages)
	require.Len(t, p1.Items, 2)

	q.Page = 3
	p3, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, p3.Items, 1)

	q.Page = 9
	p9, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, p9.Items)
	assert.Equal(t, 5, p9.Total)
}

func TestQueue_PaginationStableUnderTies(t *testing.T) {
	// Every lead shares the same score and date so only the identity
	// tie-break orders them. Walking the pages must enumerate each lead
	// exactly once, on every pass.
	rows := make([]QueueRow, 0, 7)
	for i := 0; i < 7; i++ {
		r := vettedRow(fmt.Sprintf("t%d", i), "Tied Show", 50, model.TierC, 0, model.ReviewPending)
		r.Lead.DateAdded = reviewNow
		rows = append(rows, r)
	}
	svc, _ := newTestService(rows...)

	collect := func(order model.SortOrder) []string {
		var ids []string
		for page := 1; ; page++ {
			p, err := svc.Queue(context.Background(), QueueQuery{
				SortBy: model.SortScore, SortOrder: order, Page: page, PageSize: 3,
			})
			require.NoError(t, err)
			for _, item := range p.Items {
				ids = append(ids, item.Lead.ID)
			}
			if page >= p.TotalPages {
				break
			}
		}
		return ids
	}

	first := collect(model.SortAsc)
	require.Len(t, first, 7)
	seen := make(map[string]bool)
	for _, id := range first {
		assert.False(t, seen[id], "lead %s appeared twice", id)
		seen[id] = true
	}

	// Same tie-break ordering regardless of direction or repetition.
	assert.Equal(t, first, collect(model.SortAsc))
	assert.Equal(t, first, collect(model.SortDesc))
}

func TestQueue_PreferencesReadThrough(t *testing.T) {
	svc, store := newTestService(queueFixture()...)
	store.prefs["reviewer"] = model.UserPreferences{
		UserID:           "reviewer",
		DefaultSortBy:    model.SortName,
		DefaultSortOrder: model.SortAsc,
		DefaultPageSize:  2,
	}

	page, err := svc.Queue(context.Background(), QueueQuery{UserID: "reviewer"})
	require.NoError(t, err)

	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Alpha Cast", page.Items[0].Lead.Title)

	// Explicit query fields win over stored preferences.
	page, err = svc.Queue(context.Background(), QueueQuery{
		UserID: "reviewer", SortBy: model.SortScore, SortOrder: model.SortDesc, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "l1", page.Items[0].Lead.ID)
	assert.Equal(t, 10, page.PageSize)
}

func TestQueue_BulkDecisionVisibleInQueue(t *testing.T) {
	svc, _ := newTestService(queueFixture()...)

	_, err := svc.BulkDecide(context.Background(), []string{"l1", "l3"}, true, "")
	require.NoError(t, err)

	page, err := svc.Queue(context.Background(), QueueQuery{FilterStatus: "approved"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestQueue_PaginationStableAcrossReviewActions(t *testing.T) {
	// Identical scores and dates: only the tie-break orders these, which
	// is the worst case for pages shifting under concurrent decisions.
	rows := make([]QueueRow, 0, 6)
	for i := 0; i < 6; i++ {
		r := vettedRow(fmt.Sprintf("s%d", i), "Steady Show", 60, model.TierB, 0, model.ReviewPending)
		r.Lead.DateAdded = reviewNow
		rows = append(rows, r)
	}
	svc, _ := newTestService(rows...)

	ids := func(p QueuePage) []string {
		out := make([]string, len(p.Items))
		for i, item := range p.Items {
			out[i] = item.Lead.ID
		}
		return out
	}

	q := QueueQuery{SortBy: model.SortScore, SortOrder: model.SortDesc, PageSize: 2, Page: 1}
	before, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, before.Items, 2)

	q.Page = 2
	p2, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, p2.Items, 2)

	// Approve an item on page 2, then re-read page 1 with the same query.
	decided := p2.Items[0].Lead.ID
	_, err = svc.Decide(context.Background(), decided, true, "fits the brief")
	require.NoError(t, err)

	q.Page = 1
	after, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after))

	// The decided lead keeps its slot on its own page.
	q.Page = 2
	p2After, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, ids(p2), ids(p2After))
	assert.Equal(t, model.ReviewApproved, p2After.Items[0].Review.Status)

	// A rejection elsewhere leaves page 1 untouched as well.
	_, err = svc.Decide(context.Background(), p2.Items[1].Lead.ID, false, "")
	require.NoError(t, err)

	q.Page = 1
	again, err := svc.Queue(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(again))
}
