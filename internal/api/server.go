// Package api exposes the review queue over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

// Server serves the review queue API.
type Server struct {
	svc *review.Service
}

// NewServer wraps a review service in HTTP handlers.
func NewServer(svc *review.Service) *Server {
	return &Server{svc: svc}
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/leads", s.handleQueue)
		r.Post("/leads/{id}/review", s.handleDecide)
		r.Post("/leads/bulk-review", s.handleBulkDecide)
		r.Get("/preferences/{user}", s.handleGetPreferences)
		r.Put("/preferences/{user}", s.handlePutPreferences)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	q, err := queueQueryFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.svc.Queue(r.Context(), q)
	if err != nil {
		zap.L().Error("queue read failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "queue read failed")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

type decideRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.svc.Decide(r.Context(), leadID, req.Approved, req.Feedback)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, rec)
	case eris.Is(err, model.ErrLeadNotFound):
		respondError(w, http.StatusNotFound, "lead not found")
	case eris.Is(err, model.ErrReviewTransitionInvalid):
		respondError(w, http.StatusConflict, eris.Cause(err).Error())
	default:
		zap.L().Error("review decision failed", zap.String("lead_id", leadID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "review decision failed")
	}
}

type bulkDecideRequest struct {
	LeadIDs  []string `json:"lead_ids"`
	Approved bool     `json:"approved"`
	Feedback string   `json:"feedback"`
}

func (s *Server) handleBulkDecide(w http.ResponseWriter, r *http.Request) {
	var req bulkDecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.LeadIDs) == 0 {
		respondError(w, http.StatusBadRequest, "lead_ids is required")
		return
	}

	outcome, err := s.svc.BulkDecide(r.Context(), req.LeadIDs, req.Approved, req.Feedback)
	if err != nil {
		zap.L().Error("bulk review failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "bulk review failed")
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	prefs, err := s.svc.Preferences(r.Context(), userID)
	if err != nil {
		zap.L().Error("preferences read failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "preferences read failed")
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	var prefs model.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The path segment is authoritative for the subject reviewer.
	prefs.UserID = userID

	if err := s.svc.SavePreferences(r.Context(), prefs); err != nil {
		respondError(w, http.StatusBadRequest, eris.Cause(err).Error())
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

// queueQueryFromRequest maps URL parameters onto a QueueQuery. Absent
// fields stay zero so stored preferences can fill them.
func queueQueryFromRequest(r *http.Request) (review.QueueQuery, error) {
	vals := r.URL.Query()
	q := review.QueueQuery{
		UserID:       vals.Get("user"),
		FilterTier:   vals.Get("tier"),
		FilterStatus: vals.Get("status"),
		SearchTerm:   vals.Get("search"),
		SortBy:       model.SortField(vals.Get("sort_by")),
		SortOrder:    model.SortOrder(vals.Get("sort_order")),
	}

	if raw := vals.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, eris.Errorf("api: invalid page %q", raw)
		}
		q.Page = n
	}
	if raw := vals.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, eris.Errorf("api: invalid page_size %q", raw)
		}
		q.PageSize = n
	}
	if raw := vals.Get("min_score"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, eris.Errorf("api: invalid min_score %q", raw)
		}
		q.MinScore = &f
	}
	if raw := vals.Get("max_score"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, eris.Errorf("api: invalid max_score %q", raw)
		}
		q.MaxScore = &f
	}

	if q.FilterStatus != "" {
		q.FilterStatus = strings.ToLower(q.FilterStatus)
		if !model.ReviewStatus(q.FilterStatus).Valid() {
			return q, eris.Errorf("api: invalid status %q", q.FilterStatus)
		}
	}

	return q, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
