package model

import "time"

// Canonical attribute keys shared by discovery sources. A SourceRecord may
// carry any subset; the deduplicator only merges keys it knows about.
const (
	AttrTitle        = "title"
	AttrDescription  = "description"
	AttrFeedURL      = "feed_url"
	AttrWebsite      = "website"
	AttrAuthor       = "author"
	AttrEmail        = "email"
	AttrLanguage     = "language"
	AttrImageURL     = "image_url"
	AttrCategories   = "categories"
	AttrEpisodeCount = "episode_count"
	AttrAudienceSize = "audience_size"
	AttrListenScore  = "listen_score"
	AttrItunesRating = "itunes_rating_average"
)

// SourceRecord is the raw payload one discovery source returned for one
// candidate. Immutable once received; the deduplicator never writes to it.
type SourceRecord struct {
	SourceName     string         `json:"source_name"`
	SourceNativeID string         `json:"source_native_id"`
	Attributes     map[string]any `json:"attributes"`
}

// StringAttr returns the named attribute as a string, or "" when absent
// or not string-shaped.
func (r SourceRecord) StringAttr(key string) string {
	if r.Attributes == nil {
		return ""
	}
	s, _ := r.Attributes[key].(string)
	return s
}

// Lead is the deduplicated discovery unit: one real-world candidate with a
// canonical attribute set chosen from its contributing source records.
type Lead struct {
	ID                  string    `json:"id"`
	Identity            string    `json:"identity"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	FeedURL             string    `json:"feed_url"`
	Website             string    `json:"website"`
	Author              string    `json:"author"`
	Email               string    `json:"email,omitempty"`
	Language            string    `json:"language,omitempty"`
	ImageURL            string    `json:"image_url,omitempty"`
	Categories          []string  `json:"categories,omitempty"`
	EpisodeCount        int       `json:"episode_count,omitempty"`
	AudienceSize        int       `json:"audience_size,omitempty"`
	ListenScore         int       `json:"listen_score,omitempty"`
	ItunesRating        float64   `json:"itunes_rating_average,omitempty"`
	ContributingSources []string  `json:"contributing_sources"`
	DateAdded           time.Time `json:"date_added"`
}
