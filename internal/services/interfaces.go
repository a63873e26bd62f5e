package services

import (
	"context"

	"github.com/tropicaldog17/mangaguard/internal/models"
)

// ModerationService drives posts through classification and moderator review
type ModerationService interface {
	SubmitPost(ctx context.Context, req *SubmitPostRequest) (*SubmitPostResult, error)
	ModeratorAction(ctx context.Context, postID int64, action models.LogAction, req *ModeratorActionRequest) (*models.Post, error)
	QuickClassify(ctx context.Context, req *QuickClassifyRequest) (*QuickClassifyResult, error)
	Reanalyze(ctx context.Context, postID int64) (*SubmitPostResult, error)

	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, filter *models.PostFilter) (*models.PostPage, error)
	ListPending(ctx context.Context, limit, offset int) (*models.PostPage, error)
	ListEditorial(ctx context.Context, filter *models.PostFilter) (*models.PostPage, error)
	History(ctx context.Context, postID int64) ([]*models.ModerationLog, error)
}

// ReportingService defines the interface for dashboard reports
type ReportingService interface {
	Stats(ctx context.Context, days int) (*models.ModerationStats, error)
	SimilarPosts(ctx context.Context, postID int64) (*models.SimilarPostsResult, error)
	UserActivity(ctx context.Context, filter *models.UserActivityFilter) (*models.UserActivityPage, error)
	UserDetail(ctx context.Context, userID string, days int) (*models.UserDetail, error)
}
