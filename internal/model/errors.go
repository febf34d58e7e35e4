package model

import "github.com/rotisserie/eris"

// Pipeline error taxonomy. Everything here is a per-item condition: a
// batch never aborts because one record tripped one of these.
var (
	// ErrIdentityIndeterminate marks a source record whose feed URL and
	// title are both unusable. The record is dropped and counted.
	ErrIdentityIndeterminate = eris.New("candidate identity indeterminate")

	// ErrSourceUnavailable marks a failed discovery or enrichment call.
	// Recorded as a soft failure on the profile's provenance.
	ErrSourceUnavailable = eris.New("source unavailable")

	// ErrScoringMetricUnavailable marks a vetting metric that could not
	// be evaluated. Excluded from the composite, never zero-filled.
	ErrScoringMetricUnavailable = eris.New("scoring metric unavailable")

	// ErrVettingUnrecoverable marks a profile for which every metric was
	// unavailable. The result is Unvetted with a populated error.
	ErrVettingUnrecoverable = eris.New("vetting unrecoverable")

	// ErrLeadNotFound marks an unknown lead id in a review action.
	ErrLeadNotFound = eris.New("lead not found")

	// ErrReviewTransitionInvalid marks a disallowed review status change.
	ErrReviewTransitionInvalid = eris.New("invalid review transition")
)
