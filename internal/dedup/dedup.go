// Package dedup collapses multi-source discovery batches into unique leads.
package dedup

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/identity"
	"github.com/podreach/leadpipe/internal/model"
)

// priorSource is the pseudo source name given to a previously persisted
// lead when it joins a group. Outranks arrival order, never appears in
// contributing_sources.
const priorSource = "__prior__"

// FieldPriority maps an attribute key to an ordered list of source names,
// most authoritative first. Fields not listed resolve by arrival order.
// Kept as data so deployments can override it from config.
type FieldPriority map[string][]string

// DefaultFieldPriority ranks the numeric audience fields by documented
// source accuracy.
func DefaultFieldPriority() FieldPriority {
	return FieldPriority{
		model.AttrAudienceSize: {"podscan", "listennotes"},
		model.AttrListenScore:  {"listennotes"},
		model.AttrItunesRating: {"listennotes", "podscan"},
		model.AttrEpisodeCount: {"listennotes", "podscan"},
	}
}

// mergedKeys is the set of attribute keys the deduplicator materializes
// onto a Lead, in a fixed order.
var mergedKeys = []string{
	model.AttrTitle,
	model.AttrDescription,
	model.AttrFeedURL,
	model.AttrWebsite,
	model.AttrAuthor,
	model.AttrEmail,
	model.AttrLanguage,
	model.AttrImageURL,
	model.AttrCategories,
	model.AttrEpisodeCount,
	model.AttrAudienceSize,
	model.AttrListenScore,
	model.AttrItunesRating,
}

// Result is the outcome of one deduplication pass.
type Result struct {
	Leads   []model.Lead
	Dropped int // identity-indeterminate records
	Merged  int // duplicate records collapsed into an existing group
}

// Deduplicator groups source records by canonical identity and merges each
// group into one lead.
type Deduplicator struct {
	priority FieldPriority
	now      func() time.Time
	newID    func() string
}

// New creates a Deduplicator. A nil priority table falls back to
// DefaultFieldPriority.
func New(priority FieldPriority) *Deduplicator {
	if priority == nil {
		priority = DefaultFieldPriority()
	}
	return &Deduplicator{
		priority: priority,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

type group struct {
	identity string
	prior    *model.Lead
	records  []model.SourceRecord
}

// Deduplicate merges records into unique leads, folding in prior leads
// from earlier discovery runs as highest-priority contributions. Records
// whose identity cannot be resolved are dropped and counted, never
// retried. The pass is pure: inputs are not mutated.
func (d *Deduplicator) Deduplicate(records []model.SourceRecord, prior []model.Lead) (Result, error) {
	log := zap.L().With(zap.String("phase", "dedup"))

	groups := make(map[string]*group)
	var order []string

	for i := range prior {
		p := prior[i]
		if p.Identity == "" {
			return Result{}, eris.Errorf("dedup: prior lead %s has no identity", p.ID)
		}
		groups[p.Identity] = &group{identity: p.Identity, prior: &p}
		order = append(order, p.Identity)
	}

	var res Result
	for _, rec := range records {
		key, err := identity.Resolve(rec)
		if err != nil {
			if eris.Is(err, model.ErrIdentityIndeterminate) {
				res.Dropped++
				log.Debug("dropping record with indeterminate identity",
					zap.String("source", rec.SourceName),
					zap.String("native_id", rec.SourceNativeID),
				)
				continue
			}
			return Result{}, err
		}

		g, ok := groups[key]
		if !ok {
			g = &group{identity: key}
			groups[key] = g
			order = append(order, key)
		} else if len(g.records) > 0 || g.prior != nil {
			res.Merged++
		}
		g.records = append(g.records, rec)
	}

	for _, key := range order {
		g := groups[key]
		if g.prior != nil && len(g.records) == 0 {
			// Known lead untouched by this batch; not part of the output.
			continue
		}
		res.Leads = append(res.Leads, d.mergeGroup(g))
	}

	log.Info("deduplication complete",
		zap.Int("records", len(records)),
		zap.Int("leads", len(res.Leads)),
		zap.Int("merged", res.Merged),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

// mergeGroup builds one lead from a group's prior lead and records.
func (d *Deduplicator) mergeGroup(g *group) model.Lead {
	contributions := make([]model.SourceRecord, 0, len(g.records)+1)
	if g.prior != nil {
		contributions = append(contributions, leadRecord(*g.prior))
	}
	contributions = append(contributions, g.records...)

	attrs := make(map[string]any, len(mergedKeys))
	for _, key := range mergedKeys {
		attrs[key] = d.resolveField(key, contributions)
	}

	lead := leadFromAttributes(g.identity, attrs)
	lead.ContributingSources = contributingSources(g)

	if g.prior != nil {
		lead.ID = g.prior.ID
		lead.DateAdded = g.prior.DateAdded
	} else {
		lead.ID = d.newID()
		lead.DateAdded = d.now().UTC()
	}
	return lead
}

// resolveField picks the winning value for one attribute key. Source-ranked
// fields consult the priority table first; everything else (and ranked
// fields no ranked source supplied) takes the first non-empty value in
// arrival order, with a prior lead counted as arriving first.
func (d *Deduplicator) resolveField(key string, contributions []model.SourceRecord) any {
	if ranked, ok := d.priority[key]; ok {
		for _, source := range ranked {
			for _, rec := range contributions {
				if rec.SourceName != source {
					continue
				}
				if v := rec.Attributes[key]; !isEmpty(v) {
					return v
				}
			}
		}
	}

	for _, rec := range contributions {
		if v := rec.Attributes[key]; !isEmpty(v) {
			return v
		}
	}
	return nil
}

func contributingSources(g *group) []string {
	var out []string
	seen := make(map[string]bool)
	if g.prior != nil {
		for _, s := range g.prior.ContributingSources {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	for _, rec := range g.records {
		if rec.SourceName != "" && !seen[rec.SourceName] {
			seen[rec.SourceName] = true
			out = append(out, rec.SourceName)
		}
	}
	return out
}

// leadRecord converts a persisted lead back into a source record so the
// merge loop can treat it like any other contribution.
func leadRecord(l model.Lead) model.SourceRecord {
	return model.SourceRecord{
		SourceName: priorSource,
		Attributes: map[string]any{
			model.AttrTitle:        l.Title,
			model.AttrDescription:  l.Description,
			model.AttrFeedURL:      l.FeedURL,
			model.AttrWebsite:      l.Website,
			model.AttrAuthor:       l.Author,
			model.AttrEmail:        l.Email,
			model.AttrLanguage:     l.Language,
			model.AttrImageURL:     l.ImageURL,
			model.AttrCategories:   l.Categories,
			model.AttrEpisodeCount: l.EpisodeCount,
			model.AttrAudienceSize: l.AudienceSize,
			model.AttrListenScore:  l.ListenScore,
			model.AttrItunesRating: l.ItunesRating,
		},
	}
}

func leadFromAttributes(identityKey string, attrs map[string]any) model.Lead {
	return model.Lead{
		Identity:     identityKey,
		Title:        toString(attrs[model.AttrTitle]),
		Description:  toString(attrs[model.AttrDescription]),
		FeedURL:      toString(attrs[model.AttrFeedURL]),
		Website:      toString(attrs[model.AttrWebsite]),
		Author:       toString(attrs[model.AttrAuthor]),
		Email:        toString(attrs[model.AttrEmail]),
		Language:     toString(attrs[model.AttrLanguage]),
		ImageURL:     toString(attrs[model.AttrImageURL]),
		Categories:   toStringSlice(attrs[model.AttrCategories]),
		EpisodeCount: toInt(attrs[model.AttrEpisodeCount]),
		AudienceSize: toInt(attrs[model.AttrAudienceSize]),
		ListenScore:  toInt(attrs[model.AttrListenScore]),
		ItunesRating: toFloat(attrs[model.AttrItunesRating]),
	}
}

// isEmpty treats nil, blank strings, zero numbers and empty slices as
// absent for merge purposes.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case int:
		return x == 0
	case int64:
		return x == 0
	case float64:
		return x == 0
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func toString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return 0
}

func toStringSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
