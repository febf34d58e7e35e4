package review

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/podreach/leadpipe/internal/model"
)

// QueueQuery selects, orders, and pages the review queue. Zero-valued sort
// and page-size fields are filled from the reviewer's stored preferences.
type QueueQuery struct {
	UserID string

	Page     int
	PageSize int

	FilterTier   string
	FilterStatus string
	MinScore     *float64
	MaxScore     *float64
	SearchTerm   string

	SortBy    model.SortField
	SortOrder model.SortOrder
}

// QueuePage is one page of the review queue.
type QueuePage struct {
	Items      []QueueRow `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// Queue returns one filtered, sorted page of leads for review. The read is
// pure: filtering, ordering, and paging happen over the joined rows, and
// repeated reads with the same query see the same ordering.
func (s *Service) Queue(ctx context.Context, q QueueQuery) (QueuePage, error) {
	if err := s.applyPreferences(ctx, &q); err != nil {
		return QueuePage{}, err
	}

	rows, err := s.store.ListQueueRows(ctx)
	if err != nil {
		return QueuePage{}, eris.Wrap(err, "review: list queue")
	}

	filtered := filterRows(rows, q)
	sortRows(filtered, q.SortBy, q.SortOrder)

	total := len(filtered)
	totalPages := (total + q.PageSize - 1) / q.PageSize
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	return QueuePage{
		Items:      filtered[start:end],
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}

// applyPreferences fills zero-valued query fields from the reviewer's
// stored defaults, then normalizes.
func (s *Service) applyPreferences(ctx context.Context, q *QueueQuery) error {
	prefs := model.DefaultPreferences(q.UserID)
	if q.UserID != "" {
		stored, err := s.store.GetPreferences(ctx, q.UserID)
		if err != nil {
			return eris.Wrapf(err, "review: preferences for %s", q.UserID)
		}
		prefs = stored
	}

	if q.SortBy == "" {
		q.SortBy = prefs.DefaultSortBy
	}
	if q.SortOrder == "" {
		q.SortOrder = prefs.DefaultSortOrder
	}
	if q.PageSize <= 0 {
		q.PageSize = prefs.DefaultPageSize
	}

	if q.SortBy == "" {
		q.SortBy = model.SortDateAdded
	}
	if q.SortOrder == "" {
		q.SortOrder = model.SortDesc
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return nil
}

func filterRows(rows []QueueRow, q QueueQuery) []QueueRow {
	out := make([]QueueRow, 0, len(rows))
	search := strings.ToLower(strings.TrimSpace(q.SearchTerm))

	for _, r := range rows {
		if q.FilterTier != "" && string(r.Tier()) != q.FilterTier {
			continue
		}
		if q.FilterStatus != "" && string(r.Review.Status) != q.FilterStatus {
			continue
		}
		if q.MinScore != nil || q.MaxScore != nil {
			score := r.Score()
			// Unvetted leads never match a score range.
			if score < 0 {
				continue
			}
			if q.MinScore != nil && score < *q.MinScore {
				continue
			}
			if q.MaxScore != nil && score > *q.MaxScore {
				continue
			}
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesSearch(r QueueRow, search string) bool {
	return strings.Contains(strings.ToLower(r.Lead.Title), search) ||
		strings.Contains(strings.ToLower(r.Lead.Description), search) ||
		strings.Contains(strings.ToLower(r.Lead.Author), search)
}

// sortRows orders rows by the requested field with (date_added, identity)
// as the tie-break, so pagination stays stable across reads.
func sortRows(rows []QueueRow, field model.SortField, order model.SortOrder) {
	desc := order == model.SortDesc

	less := func(i, j int) bool {
		a, b := rows[i], rows[j]
		var cmp int
		switch field {
		case model.SortScore:
			switch {
			case a.Score() < b.Score():
				cmp = -1
			case a.Score() > b.Score():
				cmp = 1
			}
		case model.SortName:
			cmp = strings.Compare(strings.ToLower(a.Lead.Title), strings.ToLower(b.Lead.Title))
		default: // date_added
			switch {
			case a.Lead.DateAdded.Before(b.Lead.DateAdded):
				cmp = -1
			case a.Lead.DateAdded.After(b.Lead.DateAdded):
				cmp = 1
			}
		}
		if cmp != 0 {
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}

		// Stable tie-break independent of sort direction.
		if !a.Lead.DateAdded.Equal(b.Lead.DateAdded) {
			return a.Lead.DateAdded.Before(b.Lead.DateAdded)
		}
		return a.Lead.Identity < b.Lead.Identity
	}
	sort.SliceStable(rows, less)
}
