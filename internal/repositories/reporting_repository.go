package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/tropicaldog17/mangaguard/internal/db"
	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
)

type reportingRepository struct {
	db *db.DB
}

// NewReportingRepository creates a new reporting repository
func NewReportingRepository(database *db.DB) ReportingRepository {
	return &reportingRepository{db: database}
}

func (r *reportingRepository) StatusTotals(ctx context.Context) ([]models.StatusCount, error) {
	var rows []models.StatusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to count posts by status: %v", apperrors.ErrStore, err)
	}
	return rows, nil
}

// PostsCreatedSince returns the report window. Aggregation over it happens in Go so the
// queries stay portable between postgres and sqlite.
func (r *reportingRepository) PostsCreatedSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC, id ASC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load report window: %v", apperrors.ErrStore, err)
	}
	return posts, nil
}

func (r *reportingRepository) LogsCreatedSince(ctx context.Context, since time.Time) ([]*models.ModerationLog, error) {
	var logs []*models.ModerationLog
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load moderation logs: %v", apperrors.ErrStore, err)
	}
	return logs, nil
}

// SimilarCandidates returns decided posts other than excludeID whose content contains any
// of keywords, most recently updated first.
func (r *reportingRepository) SimilarCandidates(ctx context.Context, excludeID int64, keywords []string, limit int) ([]*models.Post, error) {
	if len(keywords) == 0 {
		return []*models.Post{}, nil
	}

	match := r.db.WithContext(ctx)
	for i, k := range keywords {
		if i == 0 {
			match = match.Where(`content LIKE ? ESCAPE '\'`, containsPattern(k))
		} else {
			match = match.Or(`content LIKE ? ESCAPE '\'`, containsPattern(k))
		}
	}

	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("status IN ?", []models.PostStatus{models.StatusApproved, models.StatusRejected}).
		Where(match).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to search similar posts: %v", apperrors.ErrStore, err)
	}
	return posts, nil
}

// ActivityPosts returns the posts matching the row-level part of an activity filter
// (author substring, status, creation range). Per-author grouping is done by the caller.
func (r *reportingRepository) ActivityPosts(ctx context.Context, filter *models.UserActivityFilter) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where(`user_id LIKE ? ESCAPE '\'`, containsPattern(filter.UserID))
		}
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		if filter.CreatedFrom != nil {
			q = q.Where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if filter.CreatedBefore != nil {
			q = q.Where("created_at < ?", filter.CreatedBefore.UTC())
		}
	}

	var posts []*models.Post
	if err := q.Order("user_id ASC, created_at ASC, id ASC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load activity posts: %v", apperrors.ErrStore, err)
	}
	return posts, nil
}

func (r *reportingRepository) UserPosts(ctx context.Context, userID string) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load user posts: %v", apperrors.ErrStore, err)
	}
	return posts, nil
}
