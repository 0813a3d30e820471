package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/orgstate/internal/orgservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *orgservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *orgservice.Service) *Handler {
	return &Handler{svc: svc}
}

// State handles GET /api/state.
//
//	@Summary		Aggregated state: bucket sizes and scan diagnostics
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.State(r.Context())
	if err != nil {
		writeError(w, "state failed", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Bucket handles GET /api/buckets/{name}.
//
//	@Summary		Records of one bucket
//	@Tags			state
//	@Produce		json
//	@Param			name	path		string	true	"Bucket name, e.g. tasks.active"
//	@Success		200		{object}	BucketResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/buckets/{name} [get]
func (h *Handler) Bucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	recs, err := h.svc.Bucket(r.Context(), name)
	if err != nil {
		writeError(w, "bucket failed", err, slog.String("bucket", name))
		return
	}
	writeJSON(w, http.StatusOK, BucketResponse{Name: name, Records: recs})
}

// Reminders handles GET /api/reminders.
//
//	@Summary		List reminders sorted by due time
//	@Tags			reminders
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(pending, snoozed, ongoing, completed, dismissed)
//	@Success		200		{object}	RemindersResponse
//	@Security		BearerAuth
//	@Router			/reminders [get]
func (h *Handler) Reminders(w http.ResponseWriter, r *http.Request) {
	rems, err := h.svc.Reminders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, "reminders failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RemindersResponse{Count: len(rems), Reminders: rems})
}

// Tags handles GET /api/tags.
//
//	@Summary		Tag usage counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.TagStats(r.Context())
	if err != nil {
		writeError(w, "tag stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: stats})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search failed", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Backlinks handles GET /api/backlinks.
//
//	@Summary		Documents linking to a path
//	@Tags			search
//	@Produce		json
//	@Param			path	query		string	true	"Target document path"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, "backlinks failed", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}
