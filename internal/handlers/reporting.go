package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/services"
)

type ReportingHandler struct {
	service services.ReportingService
	logger  *zap.Logger
}

func NewReportingHandler(service services.ReportingService, logger *zap.Logger) *ReportingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportingHandler{service: service, logger: logger}
}

// HandleStats handles GET /api/moderation/stats
// @Summary Moderation statistics
// @Description Dashboard statistics for the last N days
// @Tags reports
// @Produce json
// @Param days query int false "Report window in days (default 30)"
// @Success 200 {object} models.ModerationStats
// @Failure 400 {object} ErrorResponse
// @Router /moderation/stats [get]
func (h *ReportingHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := newQueryParser(r)
	days := q.int("days", services.DefaultReportDays)
	if q.err != nil {
		writeError(w, r, h.logger, q.err)
		return
	}
	stats, err := h.service.Stats(r.Context(), days)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleSimilarPosts handles GET /api/moderation/similar-posts/{id}
// @Summary Similar decided posts
// @Description Up to three approved or rejected posts sharing a keyword with the post, with their latest decision
// @Tags reports
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.SimilarPostsResult
// @Failure 404 {object} ErrorResponse
// @Router /moderation/similar-posts/{id} [get]
func (h *ReportingHandler) HandleSimilarPosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.service.SimilarPosts(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleUserActivity handles GET /api/moderation/user-activity
// @Summary Author activity
// @Description Per-author rollups with filters, sorting and pagination
// @Tags reports
// @Produce json
// @Param user_id query string false "Substring of the author id"
// @Param min_posts query int false "Minimum post count (default 1)"
// @Param max_posts query int false "Maximum post count (default 1000)"
// @Param min_avg_score query number false "Minimum average score"
// @Param max_avg_score query number false "Maximum average score"
// @Param risk_type query string false "Authors with at least one post of this risk"
// @Param status query string false "Only count posts in this status"
// @Param date_from query string false "First day (YYYY-MM-DD)"
// @Param date_to query string false "Last day, inclusive (YYYY-MM-DD)"
// @Param sort_by query string false "Sort field (default post_count)"
// @Param sort_order query string false "ASC or DESC"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.UserActivityPage
// @Failure 400 {object} ErrorResponse
// @Router /moderation/user-activity [get]
func (h *ReportingHandler) HandleUserActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	filter, err := parseUserActivityFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.service.UserActivity(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseUserActivityFilter(r *http.Request) (*models.UserActivityFilter, error) {
	q := newQueryParser(r)
	filter := &models.UserActivityFilter{
		UserID:        q.str("user_id"),
		MinPosts:      q.int("min_posts", 0),
		MaxPosts:      q.int("max_posts", 0),
		CreatedFrom:   q.date("date_from", false),
		CreatedBefore: q.date("date_to", true),
		SortBy:        q.str("sort_by"),
		Limit:         q.int("limit", 0),
		Offset:        q.int("offset", 0),
	}
	if v := q.float("min_avg_score"); v != nil {
		filter.MinAvgScore = *v
	}
	if v := q.float("max_avg_score"); v != nil {
		filter.MaxAvgScore = *v
	}
	if risk := q.str("risk_type"); risk != "" && risk != "all" {
		filter.Risk = models.RiskCategory(risk)
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

// HandleUserDetail handles GET /api/moderation/user-activity/{userId}
// @Summary Author drill-down
// @Description Basic stats, daily and per-work activity, risk breakdown and recent posts of one author
// @Tags reports
// @Produce json
// @Param userId path string true "Author ID"
// @Param days query int false "Daily activity window in days (default 30)"
// @Success 200 {object} models.UserDetail
// @Failure 404 {object} ErrorResponse
// @Router /moderation/user-activity/{userId} [get]
func (h *ReportingHandler) HandleUserDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, r, h.logger, apperrors.Validation("userId", "is required"))
		return
	}
	q := newQueryParser(r)
	days := q.int("days", services.DefaultReportDays)
	if q.err != nil {
		writeError(w, r, h.logger, q.err)
		return
	}
	detail, err := h.service.UserDetail(r.Context(), userID, days)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
