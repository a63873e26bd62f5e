package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/services"
)

func newTestRouter(ms *mockModerationService, rs *mockReportingService, checks map[string]HealthCheck) http.Handler {
	return NewRouter(RouterConfig{
		Posts:      NewPostHandler(ms, nil),
		Moderation: NewModerationHandler(ms, nil),
		Reporting:  NewReportingHandler(rs, nil),
		Checks:     checks,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func decodeError(t *testing.T, rw *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))
	return resp
}

func TestSubmitPost(t *testing.T) {
	ms := &mockModerationService{submitRes: &services.SubmitPostResult{PostID: 7, Status: models.StatusRejected, Action: models.ActionAutoReject}}
	h := newTestRouter(ms, &mockReportingService{}, nil)

	rw := do(t, h, http.MethodPost, "/api/posts", map[string]interface{}{
		"user_id": "u1", "content": "hello", "manga_title": "ワンピース", "episode_number": 3,
	})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	require.NotNil(t, ms.submitReq.WorkTitle)
	assert.Equal(t, "ワンピース", *ms.submitReq.WorkTitle)
	assert.Equal(t, 3, *ms.submitReq.EpisodeNumber)

	var res services.SubmitPostResult
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &res))
	assert.Equal(t, int64(7), res.PostID)
	assert.Equal(t, models.ActionAutoReject, res.Action)
	assert.NotEmpty(t, rw.Header().Get(RequestIDHeader))
}

func TestSubmitPostClassifierFailure(t *testing.T) {
	ms := &mockModerationService{
		submitRes: &services.SubmitPostResult{PostID: 9, Status: models.StatusFailed, ErrorKind: "classifier_unavailable"},
		submitErr: fmt.Errorf("%w: timeout", apperrors.ErrClassifierUnavailable),
	}
	h := newTestRouter(ms, &mockReportingService{}, nil)

	rw := do(t, h, http.MethodPost, "/api/posts", map[string]string{"user_id": "u", "content": "x"})
	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
	var res services.SubmitPostResult
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &res))
	assert.Equal(t, int64(9), res.PostID)
	assert.Equal(t, models.StatusFailed, res.Status)
}

func TestSubmitPostErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"invalid json", nil, "{", http.StatusBadRequest},
		{"validation", apperrors.Validation("content", "is required"), `{"user_id":"u"}`, http.StatusBadRequest},
		{"store", fmt.Errorf("%w: down", apperrors.ErrStore), `{"user_id":"u","content":"x"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockModerationService{submitErr: tt.err}
			h := newTestRouter(ms, &mockReportingService{}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewBufferString(tt.body))
			rw := httptest.NewRecorder()
			h.ServeHTTP(rw, req)
			assert.Equal(t, tt.want, rw.Code)
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	ms := &mockModerationService{getErr: fmt.Errorf("%w: pq: password authentication failed", apperrors.ErrStore)}
	h := newTestRouter(ms, &mockReportingService{}, nil)

	rw := do(t, h, http.MethodGet, "/api/posts/1", nil)
	require.Equal(t, http.StatusInternalServerError, rw.Code)
	resp := decodeError(t, rw)
	assert.Equal(t, "store_error", resp.Error)
	assert.NotContains(t, resp.Message, "password")
}

func TestListPostsQuery(t *testing.T) {
	ms := &mockModerationService{}
	h := newTestRouter(ms, &mockReportingService{}, nil)

	rw := do(t, h, http.MethodGet, "/api/posts?status=pending&user_id=abc&risk_type=spoiler&ai_score_min=0.2&date_to=2026-10-01&sort_by=ai_score&sort_order=asc&limit=10&offset=5", nil)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

	f := ms.listFilter
	require.NotNil(t, f.Status)
	assert.Equal(t, models.StatusPending, *f.Status)
	assert.Equal(t, "abc", f.UserID)
	assert.Equal(t, models.RiskSpoiler, f.Risk)
	assert.Equal(t, 0.2, *f.ScoreMin)
	assert.Equal(t, time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC), *f.CreatedBefore)
	assert.Equal(t, "ai_score", f.SortBy)
	assert.Equal(t, models.SortAsc, f.SortOrder)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 5, f.Offset)
}

func TestListPostsBadQuery(t *testing.T) {
	h := newTestRouter(&mockModerationService{}, &mockReportingService{}, nil)
	for _, q := range []string{"limit=ten", "ai_score_min=x", "date_from=01/02/2026", "sort_order=sideways"} {
		rw := do(t, h, http.MethodGet, "/api/posts?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rw.Code, q)
	}
}

func TestGetPostNotFound(t *testing.T) {
	ms := &mockModerationService{getErr: fmt.Errorf("%w: post 4", apperrors.ErrNotFound)}
	h := newTestRouter(ms, &mockReportingService{}, nil)

	rw := do(t, h, http.MethodGet, "/api/posts/4", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
	assert.Equal(t, "not_found", decodeError(t, rw).Error)

	rw = do(t, h, http.MethodGet, "/api/posts/abc", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestModeratorActions(t *testing.T) {
	tests := []struct {
		path string
		want models.LogAction
	}{
		{"/api/moderation/12/approve", models.ActionApprove},
		{"/api/moderation/12/reject", models.ActionReject},
		{"/api/moderation/12/approve-editorial", models.ActionApproveEditorial},
		{"/api/moderation/12/reject-editorial", models.ActionRejectEditorial},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ms := &mockModerationService{}
			h := newTestRouter(ms, &mockReportingService{}, nil)
			rw := do(t, h, http.MethodPost, tt.path, map[string]string{"moderator_id": "mod", "reason": "r"})
			require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
			assert.Equal(t, int64(12), ms.actionID)
			assert.Equal(t, tt.want, ms.action)
			assert.Equal(t, "mod", ms.actionReq.ModeratorID)
		})
	}
}

func TestModeratorActionErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.Validation("reason", "is required"), http.StatusBadRequest},
		{fmt.Errorf("%w: not editorial", apperrors.ErrPreconditionFailed), http.StatusConflict},
		{fmt.Errorf("%w: failed post", apperrors.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: post 1", apperrors.ErrNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		ms := &mockModerationService{actionErr: tt.err}
		h := newTestRouter(ms, &mockReportingService{}, nil)
		rw := do(t, h, http.MethodPost, "/api/moderation/1/reject", map[string]string{"moderator_id": "m"})
		assert.Equal(t, tt.want, rw.Code, tt.err.Error())
	}

	rw := do(t, newTestRouter(&mockModerationService{}, &mockReportingService{}, nil), http.MethodGet, "/api/moderation/1/approve", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}

func TestReviewQueues(t *testing.T) {
	ms := &mockModerationService{}
	h := newTestRouter(ms, &mockReportingService{}, nil)

	rw := do(t, h, http.MethodGet, "/api/moderation/pending", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, defaultQueueLimit, ms.pendingLimit)

	rw = do(t, h, http.MethodGet, "/api/moderation/editorial-feedback?status=all", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Nil(t, ms.listFilter.Status)
	assert.Equal(t, defaultQueueLimit, ms.listFilter.Limit)

	rw = do(t, h, http.MethodPost, "/api/moderation/quick-analysis", map[string]string{"content": "テスト"})
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestReportingRoutes(t *testing.T) {
	rs := &mockReportingService{}
	h := newTestRouter(&mockModerationService{}, rs, nil)

	rw := do(t, h, http.MethodGet, "/api/moderation/stats", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, 30, rs.days)

	rw = do(t, h, http.MethodGet, "/api/moderation/stats?days=7", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, 7, rs.days)

	rw = do(t, h, http.MethodGet, "/api/moderation/similar-posts/3", nil)
	require.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodGet, "/api/moderation/user-activity?min_posts=2&risk_type=all&max_avg_score=0.5&sort_by=risk_score", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, 2, rs.userFilter.MinPosts)
	assert.Empty(t, rs.userFilter.Risk)
	assert.Equal(t, 0.5, rs.userFilter.MaxAvgScore)
	assert.Equal(t, "risk_score", rs.userFilter.SortBy)

	rw = do(t, h, http.MethodGet, "/api/moderation/user-activity/reader-1", nil)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	assert.Equal(t, "reader-1", rs.detailUserID)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return fmt.Errorf("connection refused") }

	rw := do(t, newTestRouter(&mockModerationService{}, &mockReportingService{}, map[string]HealthCheck{"database": ok}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, newTestRouter(&mockModerationService{}, &mockReportingService{}, map[string]HealthCheck{"database": ok, "redis": down}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(&mockModerationService{}, &mockReportingService{}, nil)
	rw := do(t, h, http.MethodOptions, "/api/posts", nil)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "*", rw.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestRouter(&mockModerationService{}, &mockReportingService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/moderation/pending", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, "req-123", rw.Header().Get(RequestIDHeader))
}
