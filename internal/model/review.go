package model

import "time"

// ReviewStatus is the human disposition of a lead.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// ReviewRecord tracks the human disposition for one lead. Created lazily
// on first queue read, never deleted.
type ReviewRecord struct {
	LeadID     string       `json:"lead_id"`
	Status     ReviewStatus `json:"status"`
	Feedback   string       `json:"feedback,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// SortField names a reviewable queue sort key.
type SortField string

const (
	SortDateAdded SortField = "date_added"
	SortScore     SortField = "score"
	SortName      SortField = "name"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SavedFilter is a named reviewer filter preset.
type SavedFilter struct {
	Tier       string  `json:"tier,omitempty" yaml:"tier,omitempty"`
	Status     string  `json:"status,omitempty" yaml:"status,omitempty"`
	MinScore   float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	MaxScore   float64 `json:"max_score,omitempty" yaml:"max_score,omitempty"`
	SearchTerm string  `json:"search_term,omitempty" yaml:"search_term,omitempty"`
}

// UserPreferences holds per-reviewer queue defaults. Read by the review
// queue, written only through the preferences endpoints.
type UserPreferences struct {
	UserID           string                 `json:"user_id"`
	DefaultSortBy    SortField              `json:"default_sort_by"`
	DefaultSortOrder SortOrder              `json:"default_sort_order"`
	DefaultPageSize  int                    `json:"default_page_size"`
	SavedFilters     map[string]SavedFilter `json:"saved_filters,omitempty"`
}

// DefaultPreferences returns the queue defaults applied when a reviewer
// has no stored preferences.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:           userID,
		DefaultSortBy:    SortDateAdded,
		DefaultSortOrder: SortDesc,
		DefaultPageSize:  10,
	}
}
