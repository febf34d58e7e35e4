// Package review implements the human approval queue: the per-lead review
// state machine, filtered and paginated queue reads, and reviewer
// preferences.
package review

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/model"
)

// CanTransition reports whether a review status change is allowed.
// Pending leads may be approved or rejected; decided leads may be
// re-reviewed to the opposite decision. Nothing goes back to pending.
func CanTransition(from, to model.ReviewStatus) bool {
	if !from.Valid() || !to.Valid() || to == model.ReviewPending {
		return false
	}
	if from == to {
		// Re-affirming a decision is permitted; it re-stamps reviewed_at.
		return from != model.ReviewPending
	}
	return true
}

// Service coordinates review decisions and queue reads over the store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a review Service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Decide applies a single approve/reject decision. The review record is
// created lazily if the lead has never been surfaced, and reviewed_at is
// re-stamped on every transition (last write wins).
func (s *Service) Decide(ctx context.Context, leadID string, approved bool, feedback string) (model.ReviewRecord, error) {
	rec, err := s.store.GetOrCreateReview(ctx, leadID)
	if err != nil {
		return model.ReviewRecord{}, eris.Wrapf(err, "review: decide %s", leadID)
	}

	to := model.ReviewRejected
	if approved {
		to = model.ReviewApproved
	}
	if !CanTransition(rec.Status, to) {
		return model.ReviewRecord{}, eris.Wrapf(model.ErrReviewTransitionInvalid,
			"review: %s -> %s for lead %s", rec.Status, to, leadID)
	}

	now := s.now()
	rec.Status = to
	rec.Feedback = feedback
	rec.ReviewedAt = &now

	if err := s.store.UpdateReview(ctx, rec); err != nil {
		return model.ReviewRecord{}, eris.Wrapf(err, "review: update %s", leadID)
	}

	zap.L().Info("review decision",
		zap.String("lead_id", leadID),
		zap.String("status", string(to)))
	return rec, nil
}

// ItemFailure records one failed item inside a bulk decision.
type ItemFailure struct {
	LeadID string `json:"lead_id"`
	Reason string `json:"reason"`
}

// BulkOutcome summarizes a bulk review action. Bulk decisions are
// per-item, never all-or-nothing.
type BulkOutcome struct {
	Processed int           `json:"processed_count"`
	Succeeded int           `json:"success_count"`
	Failed    int           `json:"failed_count"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// BulkDecide applies the same decision to each lead id independently.
// Unknown ids and invalid transitions are recorded as item failures.
func (s *Service) BulkDecide(ctx context.Context, leadIDs []string, approved bool, feedback string) (BulkOutcome, error) {
	out := BulkOutcome{Processed: len(leadIDs)}

	for _, id := range leadIDs {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "review: bulk decide")
		}
		if _, err := s.Decide(ctx, id, approved, feedback); err != nil {
			out.Failed++
			out.Failures = append(out.Failures, ItemFailure{LeadID: id, Reason: eris.Cause(err).Error()})
			continue
		}
		out.Succeeded++
	}

	zap.L().Info("bulk review",
		zap.Int("processed", out.Processed),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed))
	return out, nil
}

// Preferences returns a reviewer's stored preferences, falling back to
// defaults.
func (s *Service) Preferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return model.UserPreferences{}, eris.Wrapf(err, "review: preferences for %s", userID)
	}
	return prefs, nil
}

// SavePreferences validates and stores a reviewer's preferences.
func (s *Service) SavePreferences(ctx context.Context, prefs model.UserPreferences) error {
	if prefs.UserID == "" {
		return eris.New("review: preferences require a user id")
	}
	if prefs.DefaultSortBy != "" {
		switch prefs.DefaultSortBy {
		case model.SortDateAdded, model.SortScore, model.SortName:
		default:
			return eris.Errorf("review: unknown sort field %q", prefs.DefaultSortBy)
		}
	}
	if prefs.DefaultSortOrder != "" && prefs.DefaultSortOrder != model.SortAsc && prefs.DefaultSortOrder != model.SortDesc {
		return eris.Errorf("review: unknown sort order %q", prefs.DefaultSortOrder)
	}
	if prefs.DefaultPageSize < 0 {
		return eris.New("review: page size must be >= 0")
	}
	if err := s.store.PutPreferences(ctx, prefs); err != nil {
		return eris.Wrapf(err, "review: save preferences for %s", prefs.UserID)
	}
	return nil
}
