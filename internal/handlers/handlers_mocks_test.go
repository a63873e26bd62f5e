package handlers

import (
	"context"

	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/services"
)

type mockModerationService struct {
	submitReq    *services.SubmitPostRequest
	submitRes    *services.SubmitPostResult
	submitErr    error
	actionID     int64
	action       models.LogAction
	actionReq    *services.ModeratorActionRequest
	actionErr    error
	listFilter   *models.PostFilter
	pendingLimit int
	post         *models.Post
	getErr       error
}

func (m *mockModerationService) SubmitPost(_ context.Context, req *services.SubmitPostRequest) (*services.SubmitPostResult, error) {
	m.submitReq = req
	return m.submitRes, m.submitErr
}

func (m *mockModerationService) ModeratorAction(_ context.Context, postID int64, action models.LogAction, req *services.ModeratorActionRequest) (*models.Post, error) {
	m.actionID, m.action, m.actionReq = postID, action, req
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return &models.Post{ID: postID, Status: models.StatusApproved}, nil
}

func (m *mockModerationService) QuickClassify(_ context.Context, req *services.QuickClassifyRequest) (*services.QuickClassifyResult, error) {
	return &services.QuickClassifyResult{Content: req.Content, PredictedStatus: models.StatusPending}, nil
}

func (m *mockModerationService) Reanalyze(_ context.Context, postID int64) (*services.SubmitPostResult, error) {
	return m.submitRes, m.submitErr
}

func (m *mockModerationService) GetPost(_ context.Context, id int64) (*models.Post, error) {
	return m.post, m.getErr
}

func (m *mockModerationService) ListPosts(_ context.Context, filter *models.PostFilter) (*models.PostPage, error) {
	m.listFilter = filter
	return &models.PostPage{Posts: []*models.Post{}}, nil
}

func (m *mockModerationService) ListPending(_ context.Context, limit, offset int) (*models.PostPage, error) {
	m.pendingLimit = limit
	return &models.PostPage{Posts: []*models.Post{}}, nil
}

func (m *mockModerationService) ListEditorial(_ context.Context, filter *models.PostFilter) (*models.PostPage, error) {
	m.listFilter = filter
	return &models.PostPage{Posts: []*models.Post{}}, nil
}

func (m *mockModerationService) History(_ context.Context, postID int64) ([]*models.ModerationLog, error) {
	return []*models.ModerationLog{{PostID: postID, Action: models.ActionAutoApprove}}, m.getErr
}

type mockReportingService struct {
	days         int
	userFilter   *models.UserActivityFilter
	detailUserID string
	err          error
}

func (m *mockReportingService) Stats(_ context.Context, days int) (*models.ModerationStats, error) {
	m.days = days
	return &models.ModerationStats{PeriodDays: days}, m.err
}

func (m *mockReportingService) SimilarPosts(_ context.Context, postID int64) (*models.SimilarPostsResult, error) {
	return &models.SimilarPostsResult{SimilarPosts: []models.SimilarPost{}, KeywordsUsed: []string{}}, m.err
}

func (m *mockReportingService) UserActivity(_ context.Context, filter *models.UserActivityFilter) (*models.UserActivityPage, error) {
	m.userFilter = filter
	return &models.UserActivityPage{Users: []models.UserActivity{}}, m.err
}

func (m *mockReportingService) UserDetail(_ context.Context, userID string, days int) (*models.UserDetail, error) {
	m.detailUserID = userID
	return &models.UserDetail{UserID: userID}, m.err
}

var _ services.ModerationService = (*mockModerationService)(nil)
var _ services.ReportingService = (*mockReportingService)(nil)
