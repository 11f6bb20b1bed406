// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/cliparse"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/middleware"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/submission"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type SubmissionHandler struct {
	cfg      cliparse.Config
	subunits *registry.Store
	router   *submission.Router
}

func NewSubmissionHandler(conn *db.Conn, cfg cliparse.Config) *SubmissionHandler {
	subunits := registry.NewStore(conn)
	return &SubmissionHandler{
		cfg:      cfg,
		subunits: subunits,
		router:   submission.NewRouter(conn, subunits),
	}
}

// Submit handles POST /subunits/{id}/submissions
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	subunitID := r.PathValue("id")

	var req models.SubmitRequest
	if !middleware.BindJSON(w, r, &req) {
		return
	}

	metadata := make(map[string]any, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["user_agent"] = r.UserAgent()
	metadata["ip_hash"] = auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt)
	metadata["submitted_via"] = "api"

	actor, _ := auth.ActorFrom(r.Context())

	sub, err := h.router.Submit(r.Context(), subunitID, req.Answers, metadata, actor.ID,
		submission.Options{Draft: req.Draft})
	if err != nil {
		writeError(w, err, "Failed to store submission")
		return
	}

	message := "Form submitted successfully"
	if req.Draft {
		message = "Draft saved"
	}
	middleware.JSONResponse(w, http.StatusCreated, models.SubmitResponse{
		SurveyID: sub.SurveyID,
		Status:   sub.Status,
		Message:  message,
	})
}

// List handles GET /subunits/{id}/submissions?limit=&offset=
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	subunitID := r.PathValue("id")
	if _, err := h.subunits.GetSubunit(r.Context(), subunitID); err != nil {
		writeError(w, err, "Failed to load subunit")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)

	subs, err := h.router.List(r.Context(), subunitID, limit, offset)
	if err != nil {
		writeError(w, err, "Failed to list submissions")
		return
	}

	summaries := make([]models.SubmissionSummary, 0, len(subs))
	for _, sub := range subs {
		summary := models.SubmissionSummary{
			SurveyID:    sub.SurveyID,
			Status:      sub.Status,
			SubmittedBy: sub.SubmittedBy,
			SubmittedAt: sub.SubmittedAt,
		}
		if sub.SubmittedAt != nil {
			summary.SubmittedAgo = humanize.Time(*sub.SubmittedAt)
		}
		summaries = append(summaries, summary)
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListSubmissionsResponse{Submissions: summaries})
}

// Get handles GET /submissions/{surveyID}
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	form, err := h.router.Get(r.Context(), r.PathValue("surveyID"))
	if err != nil {
		writeError(w, err, "Failed to load submission")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, form)
}

// Review handles POST /submissions/{surveyID}/review
func (h *SubmissionHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if !middleware.BindJSON(w, r, &req) {
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	sub, err := h.router.Review(r.Context(), r.PathValue("surveyID"), req.Status, actor.ID, req.Notes)
	if err != nil {
		writeError(w, err, "Failed to review submission")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, sub)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
