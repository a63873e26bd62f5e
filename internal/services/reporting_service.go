package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/cache"
	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/metrics"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/repositories"
)

const (
	DefaultReportDays = 30
	MaxReportDays     = 365
)

type reportingService struct {
	posts   repositories.PostRepository
	reports repositories.ReportingRepository
	cache   cache.Service
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportingService creates a new reporting service. Results are cached for ttl when
// the cache is available; a zero ttl disables caching.
func NewReportingService(posts repositories.PostRepository, reports repositories.ReportingRepository, c cache.Service, ttl time.Duration, logger *zap.Logger) ReportingService {
	if c == nil {
		c = cache.NewService(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reportingService{
		posts:   posts,
		reports: reports,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func normalizeDays(days int) (int, error) {
	if days == 0 {
		return DefaultReportDays, nil
	}
	if days < 0 || days > MaxReportDays {
		return 0, apperrors.Validation("days", fmt.Sprintf("must be between 1 and %d", MaxReportDays))
	}
	return days, nil
}

// cachedReport serves key from the cache or computes and stores it. Cache failures only
// degrade to computing the value.
func cachedReport[T any](ctx context.Context, s *reportingService, report, key string, compute func() (*T, error)) (*T, error) {
	useCache := s.ttl > 0 && s.cache.IsAvailable()
	if useCache {
		var hit T
		err := s.cache.Get(ctx, key, &hit)
		if err == nil {
			metrics.ReportCacheLookups.WithLabelValues(report, "hit").Inc()
			return &hit, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Report cache read failed", zap.String("report", report), zap.Error(err))
		}
		metrics.ReportCacheLookups.WithLabelValues(report, "miss").Inc()
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			s.logger.Warn("Report cache write failed", zap.String("report", report), zap.Error(err))
		}
	}
	return v, nil
}

func (s *reportingService) Stats(ctx context.Context, days int) (*models.ModerationStats, error) {
	days, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}

	return cachedReport(ctx, s, "stats", cache.PrefixStats+strconv.Itoa(days), func() (*models.ModerationStats, error) {
		now := s.now().UTC()
		since := now.AddDate(0, 0, -days)

		totals, err := s.reports.StatusTotals(ctx)
		if err != nil {
			return nil, err
		}
		posts, err := s.reports.PostsCreatedSince(ctx, since)
		if err != nil {
			return nil, err
		}
		logs, err := s.reports.LogsCreatedSince(ctx, since)
		if err != nil {
			return nil, err
		}
		return buildStats(days, totals, posts, logs, now), nil
	})
}

// SimilarPosts finds up to three decided posts sharing a keyword with the target post.
func (s *reportingService) SimilarPosts(ctx context.Context, postID int64) (*models.SimilarPostsResult, error) {
	target, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	res := &models.SimilarPostsResult{
		SimilarPosts: []models.SimilarPost{},
		KeywordsUsed: ExtractKeywords(target.Content),
	}
	res.TargetPost.ID = target.ID
	res.TargetPost.Content = target.Content
	res.TargetPost.WorkTitle = target.WorkTitle
	if len(res.KeywordsUsed) == 0 {
		return res, nil
	}

	candidates, err := s.reports.SimilarCandidates(ctx, target.ID, res.KeywordsUsed, maxSimilarPosts)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(candidates))
	for i, p := range candidates {
		ids[i] = p.ID
	}
	latest, err := s.posts.LatestLogs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range candidates {
		sp := models.SimilarPost{
			ID:            p.ID,
			Content:       p.Content,
			WorkTitle:     p.WorkTitle,
			AIScore:       p.AIScore,
			AIAnalysis:    p.AIAnalysis,
			DetectedRisks: p.DetectedRisks,
			Status:        p.Status,
			CreatedAt:     p.CreatedAt,
		}
		if l, ok := latest[p.ID]; ok {
			action, reason, moderator, at := l.Action, l.Reason, l.ModeratorID, l.CreatedAt
			sp.FinalDecision = &action
			sp.DecisionReason = &reason
			sp.ModeratorID = &moderator
			sp.DecisionAt = &at
		}
		res.SimilarPosts = append(res.SimilarPosts, sp)
	}
	return res, nil
}

func (s *reportingService) UserActivity(ctx context.Context, filter *models.UserActivityFilter) (*models.UserActivityPage, error) {
	if filter == nil {
		filter = &models.UserActivityFilter{}
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	return cachedReport(ctx, s, "user_activity", cache.PrefixUserActivity+activityCacheKey(filter), func() (*models.UserActivityPage, error) {
		posts, err := s.reports.ActivityPosts(ctx, filter)
		if err != nil {
			return nil, err
		}
		rows := selectUserActivity(posts, filter)
		total := int64(len(rows))

		start := filter.Offset
		if start > len(rows) {
			start = len(rows)
		}
		end := start + filter.Limit
		if end > len(rows) {
			end = len(rows)
		}
		return &models.UserActivityPage{
			Users:      rows[start:end],
			Pagination: models.NewPagination(filter.Limit, filter.Offset, total),
		}, nil
	})
}

// activityCacheKey encodes every filter field so distinct filters never share an entry.
func activityCacheKey(f *models.UserActivityFilter) string {
	v := url.Values{}
	v.Set("user", f.UserID)
	v.Set("min_posts", strconv.Itoa(f.MinPosts))
	v.Set("max_posts", strconv.Itoa(f.MaxPosts))
	v.Set("min_avg", strconv.FormatFloat(f.MinAvgScore, 'f', -1, 64))
	v.Set("max_avg", strconv.FormatFloat(f.MaxAvgScore, 'f', -1, 64))
	v.Set("risk", string(f.Risk))
	if f.Status != nil {
		v.Set("status", string(*f.Status))
	}
	if f.CreatedFrom != nil {
		v.Set("from", f.CreatedFrom.UTC().Format(time.RFC3339))
	}
	if f.CreatedBefore != nil {
		v.Set("before", f.CreatedBefore.UTC().Format(time.RFC3339))
	}
	v.Set("sort", f.SortBy+" "+string(f.SortOrder))
	v.Set("limit", strconv.Itoa(f.Limit))
	v.Set("offset", strconv.Itoa(f.Offset))
	return v.Encode()
}

func (s *reportingService) UserDetail(ctx context.Context, userID string, days int) (*models.UserDetail, error) {
	if userID == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}
	days, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}

	key := cache.PrefixUserDetail + url.QueryEscape(userID) + ":" + strconv.Itoa(days)
	return cachedReport(ctx, s, "user_detail", key, func() (*models.UserDetail, error) {
		posts, err := s.reports.UserPosts(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			return nil, fmt.Errorf("%w: user %s has no posts", apperrors.ErrNotFound, userID)
		}
		return buildUserDetail(userID, posts, days, s.now()), nil
	})
}
