// Package identity derives stable candidate identity keys from
// heterogeneous source records.
package identity

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/podreach/leadpipe/internal/model"
)

// trackingParams are query parameters stripped during feed URL
// normalization. Everything else in the query survives.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
}

// Resolve returns the canonical identity key for a source record: the
// normalized feed URL when present and well-formed, otherwise a composite
// of normalized title and author/host name. Records with neither usable
// return ErrIdentityIndeterminate and are dropped by the caller.
func Resolve(rec model.SourceRecord) (string, error) {
	if feed := rec.StringAttr(model.AttrFeedURL); feed != "" {
		if key, ok := NormalizeFeedURL(feed); ok {
			return key, nil
		}
	}

	title := normalizeText(rec.StringAttr(model.AttrTitle))
	if title == "" {
		return "", eris.Wrapf(model.ErrIdentityIndeterminate,
			"source %s record %s", rec.SourceName, rec.SourceNativeID)
	}

	host := normalizeText(rec.StringAttr(model.AttrAuthor))
	if host == "" {
		if site := rec.StringAttr(model.AttrWebsite); site != "" {
			if u, err := url.Parse(site); err == nil {
				host = strings.ToLower(u.Hostname())
			}
		}
	}
	return title + "|" + host, nil
}

// NormalizeFeedURL lowercases the URL, strips the scheme, trailing slash,
// fragment and tracking query parameters. Returns ok=false for URLs
// without a host.
func NormalizeFeedURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(strings.ToLower(raw))
	if err != nil || u.Hostname() == "" {
		return "", false
	}

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			q.Del(param)
		}
	}

	key := u.Hostname() + strings.TrimSuffix(u.EscapedPath(), "/")
	if enc := q.Encode(); enc != "" {
		key += "?" + enc
	}
	return key, true
}

// normalizeText case-folds, strips punctuation and collapses whitespace.
func normalizeText(s string) string {
	folded := cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		default:
			// Punctuation separates words the same way whitespace does,
			// so "AI: Today" and "AI Today" normalize identically.
			space = true
		}
	}
	return b.String()
}
