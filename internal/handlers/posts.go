package handlers

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/services"
)

type PostHandler struct {
	service services.ModerationService
	logger  *zap.Logger
}

func NewPostHandler(service services.ModerationService, logger *zap.Logger) *PostHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostHandler{service: service, logger: logger}
}

// HandlePosts handles GET and POST /api/posts
func (h *PostHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/posts
// @Summary List posts
// @Description List posts with filters, sorting and pagination
// @Tags posts
// @Produce json
// @Param status query string false "pending, approved, rejected or failed"
// @Param search query string false "Substring of the content"
// @Param user_id query string false "Substring of the author id"
// @Param manga_title query string false "Substring of the work title"
// @Param risk_type query string false "Detected risk category"
// @Param ai_score_min query number false "Minimum score"
// @Param ai_score_max query number false "Maximum score"
// @Param date_from query string false "First day (YYYY-MM-DD)"
// @Param date_to query string false "Last day, inclusive (YYYY-MM-DD)"
// @Param sort_by query string false "created_at, updated_at, ai_score, user_id or status"
// @Param sort_order query string false "ASC or DESC"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PostPage
// @Failure 400 {object} ErrorResponse
// @Router /posts [get]
func (h *PostHandler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePostFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.service.ListPosts(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parsePostFilter(r *http.Request) (*models.PostFilter, error) {
	q := newQueryParser(r)
	filter := &models.PostFilter{
		Search:        q.str("search"),
		UserID:        q.str("user_id"),
		WorkTitle:     q.str("manga_title"),
		Risk:          models.RiskCategory(q.str("risk_type")),
		ScoreMin:      q.float("ai_score_min"),
		ScoreMax:      q.float("ai_score_max"),
		CreatedFrom:   q.date("date_from", false),
		CreatedBefore: q.date("date_to", true),
		SortBy:        q.str("sort_by"),
		Limit:         q.int("limit", 0),
		Offset:        q.int("offset", 0),
	}
	if s := q.str("status"); s != "" && s != "all" {
		status := models.PostStatus(s)
		filter.Status = &status
	}
	if q.err != nil {
		return nil, q.err
	}
	order, err := models.ParseSortOrder(q.str("sort_order"), models.SortDesc)
	if err != nil {
		return nil, err
	}
	filter.SortOrder = order
	return filter, nil
}

// submit handles POST /api/posts
// @Summary Submit a post
// @Description Store a post, classify it and apply the automatic decision
// @Tags posts
// @Accept json
// @Produce json
// @Param post body services.SubmitPostRequest true "Post"
// @Success 201 {object} services.SubmitPostResult
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} services.SubmitPostResult "Classifier returned an invalid response; post is failed"
// @Failure 503 {object} services.SubmitPostResult "Classifier unavailable; post is failed"
// @Router /posts [post]
func (h *PostHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req services.SubmitPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.service.SubmitPost(r.Context(), &req)
	if err != nil {
		if res != nil {
			// the post exists in the failed state; report it with the error status
			writeJSON(w, apperrors.HTTPStatus(err), res)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandlePost handles GET /api/posts/{id}
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} ErrorResponse
// @Router /posts/{id} [get]
func (h *PostHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	post, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleHistory handles GET /api/posts/{id}/history
// @Summary Moderation history
// @Description Every status transition of the post, oldest first
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.ModerationLog
// @Failure 404 {object} ErrorResponse
// @Router /posts/{id}/history [get]
func (h *PostHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// HandleReanalyze handles POST /api/posts/{id}/reanalyze
// @Summary Re-analyze a post
// @Description Re-run classification for a failed post or a pending post whose classification was never recorded
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} services.SubmitPostResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Post is already classified"
// @Failure 503 {object} services.SubmitPostResult
// @Router /posts/{id}/reanalyze [post]
func (h *PostHandler) HandleReanalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.service.Reanalyze(r.Context(), id)
	if err != nil {
		if res != nil {
			writeJSON(w, apperrors.HTTPStatus(err), res)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
