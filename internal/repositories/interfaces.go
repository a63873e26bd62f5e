package repositories

import (
	"context"
	"time"

	"github.com/tropicaldog17/mangaguard/internal/models"
)

// PostRepository is the post lifecycle store. Status changes only happen through
// ApplyTransition, which writes the post and its moderation log entry atomically.
type PostRepository interface {
	CreatePending(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, filter *models.PostFilter) ([]*models.Post, error)
	Count(ctx context.Context, filter *models.PostFilter) (int64, error)
	ApplyTransition(ctx context.Context, id int64, t *Transition) (*models.Post, error)
	ListLogs(ctx context.Context, postID int64) ([]*models.ModerationLog, error)
	LatestLogs(ctx context.Context, postIDs []int64) (map[int64]*models.ModerationLog, error)
}

// ReportingRepository defines the read-only queries behind the dashboard reports
type ReportingRepository interface {
	StatusTotals(ctx context.Context) ([]models.StatusCount, error)
	PostsCreatedSince(ctx context.Context, since time.Time) ([]*models.Post, error)
	LogsCreatedSince(ctx context.Context, since time.Time) ([]*models.ModerationLog, error)
	SimilarCandidates(ctx context.Context, excludeID int64, keywords []string, limit int) ([]*models.Post, error)
	ActivityPosts(ctx context.Context, filter *models.UserActivityFilter) ([]*models.Post, error)
	UserPosts(ctx context.Context, userID string) ([]*models.Post, error)
}
