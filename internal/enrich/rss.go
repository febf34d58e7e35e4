package enrich

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/resilience"
)

// maxFeedBytes caps how much of a feed is read. Large feeds are truncated
// rather than rejected; channel-level metadata lives at the top.
const maxFeedBytes = 4 * 1024 * 1024

// maxEpisodeDates bounds the cadence sample carried on a fragment.
const maxEpisodeDates = 50

// RSSProvider enriches a lead from its own feed: owner contact, explicit
// flag, categories, and episode timing for the cadence metrics.
type RSSProvider struct {
	client    *http.Client
	userAgent string
}

// NewRSSProvider creates an RSSProvider. A nil client uses a default with
// a 15s timeout.
func NewRSSProvider(client *http.Client) *RSSProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RSSProvider{client: client, userAgent: "leadpipe/1.0"}
}

func (p *RSSProvider) Name() string { return "rss" }

func (p *RSSProvider) Domain() model.SourceDomain { return model.DomainRSS }

// rssFeed mirrors the channel-level elements the pipeline cares about.
type rssFeed struct {
	Channel struct {
		Title       string   `xml:"title"`
		Description string   `xml:"description"`
		Link        string   `xml:"link"`
		Language    string   `xml:"language"`
		Explicit    string   `xml:"explicit"`
		Keywords    string   `xml:"keywords"`
		Author      string   `xml:"author"`
		Owner       rssOwner `xml:"owner"`
		Categories  []struct {
			Text string `xml:"text,attr"`
		} `xml:"category"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssOwner struct {
	Name  string `xml:"name"`
	Email string `xml:"email"`
}

type rssItem struct {
	PubDate  string `xml:"pubDate"`
	Duration string `xml:"duration"`
}

// Fetch downloads and parses the lead's feed. Leads without a feed URL
// return an empty fragment.
func (p *RSSProvider) Fetch(ctx context.Context, lead model.Lead) (model.EnrichmentFragment, error) {
	if lead.FeedURL == "" {
		return model.EnrichmentFragment{}, nil
	}

	body, err := p.download(ctx, lead.FeedURL)
	if err != nil {
		return model.EnrichmentFragment{}, err
	}

	var feed rssFeed
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, encErr := htmlindex.Get(charset)
		if encErr != nil {
			return nil, eris.Wrapf(encErr, "rss: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	if err := dec.Decode(&feed); err != nil {
		return model.EnrichmentFragment{}, eris.Wrapf(err, "rss: parse feed %s", lead.FeedURL)
	}

	return p.fragment(feed), nil
}

func (p *RSSProvider) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "rss: build request %s", feedURL)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "rss: fetch %s", feedURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("rss: fetch %s: status %d", feedURL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "rss: read body %s", feedURL)
	}
	return body, nil
}

func (p *RSSProvider) fragment(feed rssFeed) model.EnrichmentFragment {
	ch := feed.Channel

	scalars := map[string]string{
		keyTitle:       strings.TrimSpace(ch.Title),
		keyDescription: strings.TrimSpace(ch.Description),
		keyWebsite:     strings.TrimSpace(ch.Link),
		keyLanguage:    strings.TrimSpace(ch.Language),
		keyAuthor:      strings.TrimSpace(ch.Author),
		keyOwnerName:   strings.TrimSpace(ch.Owner.Name),
		keyOwnerEmail:  strings.TrimSpace(ch.Owner.Email),
		keyExplicit:    strings.ToLower(strings.TrimSpace(ch.Explicit)),
	}
	for k, v := range scalars {
		if v == "" {
			delete(scalars, k)
		}
	}

	lists := make(map[string][]string)
	for _, c := range ch.Categories {
		if c.Text != "" {
			lists[keyCategories] = append(lists[keyCategories], c.Text)
		}
	}
	if ch.Keywords != "" {
		for _, kw := range strings.Split(ch.Keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				lists[keyKeywords] = append(lists[keyKeywords], kw)
			}
		}
	}

	var dates []time.Time
	var totalDur, durCount float64
	for _, item := range ch.Items {
		if ts, ok := parsePubDate(item.PubDate); ok && len(dates) < maxEpisodeDates {
			dates = append(dates, ts)
		}
		if secs, ok := parseDuration(item.Duration); ok {
			totalDur += secs
			durCount++
		}
	}

	frag := model.EnrichmentFragment{
		Scalars:      scalars,
		Lists:        lists,
		EpisodeDates: dates,
	}
	if durCount > 0 {
		frag.Metrics = map[string]float64{"average_duration_sec": totalDur / durCount}
	}
	return frag
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parsePubDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseDuration handles HH:MM:SS, MM:SS and plain-seconds duration tags.
func parseDuration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ":") {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || secs < 0 {
			return 0, false
		}
		return secs, true
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var secs float64
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, false
		}
		secs = secs*60 + float64(n)
	}
	return secs, true
}

var _ Provider = (*RSSProvider)(nil)
