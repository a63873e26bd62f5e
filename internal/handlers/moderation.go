package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/services"
)

// defaultQueueLimit is the page size of the review queues when none is given.
const defaultQueueLimit = 20

type ModerationHandler struct {
	service services.ModerationService
	logger  *zap.Logger
}

func NewModerationHandler(service services.ModerationService, logger *zap.Logger) *ModerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationHandler{service: service, logger: logger}
}

// HandlePending handles GET /api/moderation/pending
// @Summary Review queue
// @Description Posts awaiting manual review, oldest first
// @Tags moderation
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PostPage
// @Failure 400 {object} ErrorResponse
// @Router /moderation/pending [get]
func (h *ModerationHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := newQueryParser(r)
	limit, offset := q.int("limit", defaultQueueLimit), q.int("offset", 0)
	if q.err != nil {
		writeError(w, r, h.logger, q.err)
		return
	}
	page, err := h.service.ListPending(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleAction returns the handler of POST /api/moderation/{id}/<action>.
// @Summary Moderator decision
// @Description approve, reject, approve-editorial or reject-editorial a post. reject and reject-editorial require a reason; editorial actions require the post to be flagged as editorial feedback.
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param decision body services.ModeratorActionRequest true "Moderator and reason"
// @Success 200 {object} models.Post
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /moderation/{id}/approve [post]
// @Router /moderation/{id}/reject [post]
// @Router /moderation/{id}/approve-editorial [post]
// @Router /moderation/{id}/reject-editorial [post]
func (h *ModerationHandler) HandleAction(action models.LogAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		var req services.ModeratorActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		post, err := h.service.ModeratorAction(r.Context(), id, action, &req)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

// HandleEditorial handles GET /api/moderation/editorial-feedback
// @Summary Editorial feedback queue
// @Description Posts classified as editorial or proofreading feedback
// @Tags moderation
// @Produce json
// @Param status query string false "Status or all"
// @Param sort_by query string false "Sort field"
// @Param sort_order query string false "ASC or DESC"
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PostPage
// @Failure 400 {object} ErrorResponse
// @Router /moderation/editorial-feedback [get]
func (h *ModerationHandler) HandleEditorial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := newQueryParser(r)
	filter := &models.PostFilter{
		SortBy: q.str("sort_by"),
		Limit:  q.int("limit", defaultQueueLimit),
		Offset: q.int("offset", 0),
	}
	if s := q.str("status"); s != "" && s != "all" {
		status := models.PostStatus(s)
		filter.Status = &status
	}
	if q.err != nil {
		writeError(w, r, h.logger, q.err)
		return
	}
	order, err := models.ParseSortOrder(q.str("sort_order"), models.SortDesc)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filter.SortOrder = order

	page, err := h.service.ListEditorial(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleQuickAnalysis handles POST /api/moderation/quick-analysis
// @Summary Classify without storing
// @Description Run the classifier on arbitrary content and report the decision it would lead to. Nothing is persisted.
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body services.QuickClassifyRequest true "Content and optional context"
// @Success 200 {object} services.QuickClassifyResult
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /moderation/quick-analysis [post]
func (h *ModerationHandler) HandleQuickAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.QuickClassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.service.QuickClassify(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
