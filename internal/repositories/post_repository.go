package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tropicaldog17/mangaguard/internal/db"
	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/metrics"
	"github.com/tropicaldog17/mangaguard/internal/models"
)

// Transition describes one status change and the log entry recorded with it.
// Nil fields leave the stored column untouched.
type Transition struct {
	// From lists the statuses the post may be in when the transition is applied.
	From                []models.PostStatus
	RequireClassified   bool
	RequireUnclassified bool

	To            models.PostStatus
	Score         *float64
	Analysis      models.JSONText
	DetectedRisks models.RiskList
	EditorialFlag *bool
	ReviewedBy    *string
	ReviewedAt    *time.Time

	// Log carries Action, ModeratorID and Reason. PostID and the statuses are filled in
	// under the row lock.
	Log models.ModerationLog
}

func (t *Transition) check(p *models.Post) error {
	allowed := false
	for _, s := range t.From {
		if p.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: post %d is %s, cannot %s", apperrors.ErrConflict, p.ID, p.Status, t.Log.Action)
	}
	if t.RequireClassified && !p.Classified() {
		return fmt.Errorf("%w: post %d has not been classified", apperrors.ErrConflict, p.ID)
	}
	if t.RequireUnclassified && p.Classified() {
		return fmt.Errorf("%w: post %d has already been classified", apperrors.ErrConflict, p.ID)
	}
	return nil
}

type postRepository struct {
	db  *db.DB
	now func() time.Time
}

// NewPostRepository creates a new post repository
func NewPostRepository(database *db.DB) PostRepository {
	return &postRepository{db: database, now: time.Now}
}

func (r *postRepository) CreatePending(ctx context.Context, post *models.Post) error {
	post.ID = 0
	post.Status = models.StatusPending
	post.AIScore = nil
	post.AIAnalysis = nil
	post.DetectedRisks = models.RiskList{}
	post.EditorialFlag = false
	post.ReviewedBy = nil
	post.ReviewedAt = nil
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("%w: failed to create post: %v", apperrors.ErrStore, err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post %d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: failed to get post: %v", apperrors.ErrStore, err)
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context, filter *models.PostFilter) ([]*models.Post, error) {
	if filter == nil {
		filter = &models.PostFilter{}
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	var posts []*models.Post
	q := applyPostFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter)
	if err := q.Order(filter.OrderClause()).Limit(filter.Limit).Offset(filter.Offset).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list posts: %v", apperrors.ErrStore, err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context, filter *models.PostFilter) (int64, error) {
	if filter == nil {
		filter = &models.PostFilter{}
	}
	if err := filter.Normalize(); err != nil {
		return 0, err
	}

	var n int64
	if err := applyPostFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: failed to count posts: %v", apperrors.ErrStore, err)
	}
	return n, nil
}

// applyPostFilter binds every filter value as a parameter. The filter must be normalized.
func applyPostFilter(q *gorm.DB, f *models.PostFilter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Search != "" {
		q = q.Where(`content LIKE ? ESCAPE '\'`, containsPattern(f.Search))
	}
	if f.UserID != "" {
		q = q.Where(`user_id LIKE ? ESCAPE '\'`, containsPattern(f.UserID))
	}
	if f.WorkTitle != "" {
		q = q.Where(`manga_title LIKE ? ESCAPE '\'`, containsPattern(f.WorkTitle))
	}
	if f.Risk != "" {
		q = q.Where("detected_risks LIKE ?", riskPattern(f.Risk))
	}
	if f.ScoreMin != nil {
		q = q.Where("ai_score >= ?", *f.ScoreMin)
	}
	if f.ScoreMax != nil {
		q = q.Where("ai_score <= ?", *f.ScoreMax)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.EditorialOnly {
		q = q.Where("editorial_flag = ?", true)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// riskPattern matches a category inside the stored JSON array. Categories are
// validated against the enumeration before they reach this point.
func riskPattern(c models.RiskCategory) string {
	return `%"` + string(c) + `"%`
}

// ApplyTransition locks the post, checks the transition precondition, updates the post and
// appends the log entry in one database transaction. The log's previous_status is the
// status read under the lock.
func (r *postRepository) ApplyTransition(ctx context.Context, id int64, t *Transition) (*models.Post, error) {
	var updated models.Post
	var from models.PostStatus

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockQ := tx
		if r.db.IsPostgres() {
			lockQ = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current models.Post
		if err := lockQ.First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: post %d", apperrors.ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock post: %w", err)
		}
		from = current.Status

		if err := t.check(&current); err != nil {
			return err
		}

		now := r.now().UTC()
		updates := map[string]interface{}{
			"status":     t.To,
			"updated_at": now,
		}
		if t.Score != nil {
			updates["ai_score"] = *t.Score
		}
		if t.Analysis != nil {
			updates["ai_analysis"] = t.Analysis
		}
		if t.DetectedRisks != nil {
			updates["detected_risks"] = t.DetectedRisks
		}
		if t.EditorialFlag != nil {
			updates["editorial_flag"] = *t.EditorialFlag
		}
		if t.ReviewedBy != nil {
			updates["reviewed_by"] = *t.ReviewedBy
		}
		if t.ReviewedAt != nil {
			updates["reviewed_at"] = t.ReviewedAt.UTC()
		}

		res := tx.Model(&models.Post{}).Where("id = ? AND status = ?", id, current.Status).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update post: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: post %d changed concurrently", apperrors.ErrConflict, id)
		}

		entry := t.Log
		entry.ID = 0
		entry.PostID = id
		entry.PreviousStatus = current.Status
		entry.NewStatus = t.To
		entry.CreatedAt = now
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append moderation log: %w", err)
		}

		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to reload post: %w", err)
		}
		return nil
	})

	if err != nil {
		result := "error"
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
			result = "refused"
		} else {
			err = fmt.Errorf("%w: %v", apperrors.ErrStore, err)
		}
		metrics.Transitions.WithLabelValues(string(from), string(t.To), result).Inc()
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(from), string(t.To), "committed").Inc()
	return &updated, nil
}

func (r *postRepository) ListLogs(ctx context.Context, postID int64) ([]*models.ModerationLog, error) {
	var logs []*models.ModerationLog
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list moderation logs: %v", apperrors.ErrStore, err)
	}
	return logs, nil
}

// LatestLogs returns the most recent log entry of each post that has one.
func (r *postRepository) LatestLogs(ctx context.Context, postIDs []int64) (map[int64]*models.ModerationLog, error) {
	latest := make(map[int64]*models.ModerationLog, len(postIDs))
	if len(postIDs) == 0 {
		return latest, nil
	}

	var logs []*models.ModerationLog
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("post_id ASC, created_at DESC, id DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load latest moderation logs: %v", apperrors.ErrStore, err)
	}
	for _, l := range logs {
		if _, seen := latest[l.PostID]; !seen {
			latest[l.PostID] = l
		}
	}
	return latest, nil
}
