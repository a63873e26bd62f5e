package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/classifier"
	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/metrics"
	"github.com/tropicaldog17/mangaguard/internal/moderation"
	"github.com/tropicaldog17/mangaguard/internal/models"
	"github.com/tropicaldog17/mangaguard/internal/repositories"
)

// SubmitPostRequest is the body of a post submission.
type SubmitPostRequest struct {
	UserID        string             `json:"user_id"`
	Content       string             `json:"content"`
	ContentType   models.ContentType `json:"content_type"`
	WorkTitle     *string            `json:"manga_title"`
	EpisodeNumber *int               `json:"episode_number"`
}

// SubmitPostResult reports where a post ended up after classification. On classifier
// failure it is returned together with the error so callers can surface the post id.
type SubmitPostResult struct {
	PostID        int64             `json:"post_id"`
	Status        models.PostStatus `json:"status"`
	Action        models.LogAction  `json:"action"`
	AIScore       *float64          `json:"ai_score"`
	Provider      models.Provenance `json:"ai_provider,omitempty"`
	DetectedRisks models.RiskList   `json:"detected_risks"`
	Message       string            `json:"message"`
	Error         string            `json:"error,omitempty"`
	ErrorKind     string            `json:"error_kind,omitempty"`
}

// ModeratorActionRequest is the body of a moderator decision.
type ModeratorActionRequest struct {
	ModeratorID string `json:"moderator_id"`
	Reason      string `json:"reason"`
}

// QuickClassifyRequest is the body of an ad-hoc classification.
type QuickClassifyRequest struct {
	Content string                       `json:"content"`
	Context models.ClassificationContext `json:"context"`
}

// QuickClassifyResult carries the classification and the decision it would lead to.
type QuickClassifyResult struct {
	Content         string                       `json:"content"`
	Analysis        *models.ClassificationResult `json:"analysis"`
	PredictedStatus models.PostStatus            `json:"predicted_status"`
	PredictedAction models.LogAction             `json:"predicted_action"`
	Note            string                       `json:"note"`
	Thresholds      moderation.Thresholds        `json:"thresholds"`
	Provider        models.Provenance            `json:"ai_provider"`
	Timestamp       time.Time                    `json:"timestamp"`
}

type moderationService struct {
	posts      repositories.PostRepository
	classifier classifier.Classifier
	engine     *moderation.Engine
	logger     *zap.Logger
	now        func() time.Time
}

// NewModerationService creates the moderation pipeline service
func NewModerationService(posts repositories.PostRepository, c classifier.Classifier, engine *moderation.Engine, logger *zap.Logger) ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &moderationService{
		posts:      posts,
		classifier: c,
		engine:     engine,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *moderationService) SubmitPost(ctx context.Context, req *SubmitPostRequest) (*SubmitPostResult, error) {
	if req == nil {
		return nil, apperrors.Validation("body", "is required")
	}
	post := &models.Post{
		UserID:        strings.TrimSpace(req.UserID),
		Content:       req.Content,
		ContentType:   req.ContentType,
		WorkTitle:     req.WorkTitle,
		EpisodeNumber: req.EpisodeNumber,
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	if err := s.posts.CreatePending(ctx, post); err != nil {
		return nil, err
	}
	s.logger.Info("Post submitted",
		zap.Int64("post_id", post.ID), zap.String("user_id", post.UserID), zap.Int("content_length", len(post.Content)))

	return s.classifyAndDecide(ctx, post, models.StatusPending)
}

// Reanalyze re-runs classification under the same id for a failed post, or for a pending
// post whose classification was never recorded (the decision write failed).
func (s *moderationService) Reanalyze(ctx context.Context, postID int64) (*SubmitPostResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	switch {
	case post.Status == models.StatusFailed:
	case post.Status == models.StatusPending && !post.Classified():
	default:
		return nil, fmt.Errorf("%w: post %d is %s, only failed or unclassified posts can be re-analyzed",
			apperrors.ErrConflict, postID, post.Status)
	}
	s.logger.Info("Re-analyzing post", zap.Int64("post_id", postID), zap.String("status", string(post.Status)))
	return s.classifyAndDecide(ctx, post, post.Status)
}

// classifyAndDecide runs the automatic path for an unclassified post currently in from.
// The outcome is persisted even if ctx is canceled after the classifier returns.
func (s *moderationService) classifyAndDecide(ctx context.Context, post *models.Post, from models.PostStatus) (*SubmitPostResult, error) {
	log := s.logger.With(zap.Int64("post_id", post.ID))

	result, classifyErr := s.classifier.Classify(ctx, post.Content, post.ClassificationContext())
	if classifyErr != nil {
		return s.recordFailure(context.WithoutCancel(ctx), post.ID, from, classifyErr)
	}

	decision := s.engine.Decide(result)
	analysis, err := models.NewJSONText(models.AnalysisRecord{
		ClassificationResult: *result,
		ProcessedAt:          s.now().UTC(),
		Thresholds:           s.engine.Thresholds().Snapshot(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	editorial := result.EditorialFlagged()
	score := result.OverallScore

	updated, err := s.posts.ApplyTransition(context.WithoutCancel(ctx), post.ID, &repositories.Transition{
		From:                []models.PostStatus{from},
		RequireUnclassified: true,
		To:                  decision.Status,
		Score:               &score,
		Analysis:            analysis,
		DetectedRisks:       result.DetectedRisks,
		EditorialFlag:       &editorial,
		Log: models.ModerationLog{
			Action:      decision.Action,
			ModeratorID: models.SystemModeratorID,
			Reason:      decision.LogReason(result),
		},
	})
	if err != nil {
		// the post stays unclassified pending; Reanalyze picks it up
		log.Error("Failed to record classification", zap.Error(err))
		return nil, err
	}

	metrics.Decisions.WithLabelValues(string(decision.Action), string(decision.Status)).Inc()
	log.Info("Post classified",
		zap.String("status", string(updated.Status)),
		zap.String("action", string(decision.Action)),
		zap.Float64("score", score),
		zap.String("provider", string(result.Provider)),
		zap.Strings("detected_risks", riskStrings(result.DetectedRisks)))

	return &SubmitPostResult{
		PostID:        updated.ID,
		Status:        updated.Status,
		Action:        decision.Action,
		AIScore:       updated.AIScore,
		Provider:      result.Provider,
		DetectedRisks: updated.DetectedRisks,
		Message:       decisionMessage(decision.Status),
	}, nil
}

// recordFailure moves the post to failed with a diagnostic and returns the classifier error.
func (s *moderationService) recordFailure(ctx context.Context, postID int64, from models.PostStatus, classifyErr error) (*SubmitPostResult, error) {
	if !errors.Is(classifyErr, apperrors.ErrClassifierUnavailable) && !errors.Is(classifyErr, apperrors.ErrClassifierResponseInvalid) {
		classifyErr = fmt.Errorf("%w: %v", apperrors.ErrClassifierUnavailable, classifyErr)
	}
	kind := apperrors.Kind(classifyErr)
	log := s.logger.With(zap.Int64("post_id", postID), zap.String("error_kind", kind))

	diagnostic, err := models.NewJSONText(models.FailureDiagnostic{
		Error:     classifyErr.Error(),
		ErrorKind: kind,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, multierr.Append(classifyErr, fmt.Errorf("failed to encode diagnostic: %w", err))
	}

	_, err = s.posts.ApplyTransition(ctx, postID, &repositories.Transition{
		From:                []models.PostStatus{from},
		RequireUnclassified: true,
		To:                  models.StatusFailed,
		Analysis:            diagnostic,
		DetectedRisks:       models.RiskList{},
		Log: models.ModerationLog{
			Action:      models.ActionAIReview,
			ModeratorID: models.SystemModeratorID,
			Reason:      "Classification failed (" + kind + "): " + classifyErr.Error(),
		},
	})
	if err != nil {
		log.Error("Failed to record classification failure", zap.Error(err), zap.NamedError("classifier_error", classifyErr))
		return nil, multierr.Append(classifyErr, err)
	}

	metrics.Decisions.WithLabelValues(string(models.ActionAIReview), string(models.StatusFailed)).Inc()
	log.Warn("Classification failed, post marked failed", zap.Error(classifyErr))

	return &SubmitPostResult{
		PostID:        postID,
		Status:        models.StatusFailed,
		Action:        models.ActionAIReview,
		DetectedRisks: models.RiskList{},
		Message:       "Classification failed; the post can be re-analyzed",
		Error:         classifyErr.Error(),
		ErrorKind:     kind,
	}, classifyErr
}

func (s *moderationService) ModeratorAction(ctx context.Context, postID int64, action models.LogAction, req *ModeratorActionRequest) (*models.Post, error) {
	if req == nil {
		req = &ModeratorActionRequest{}
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	decision, err := s.engine.ApplyModeratorDecision(post, action, req.ModeratorID, req.Reason)
	if err != nil {
		return nil, err
	}

	reviewedAt := s.now().UTC()
	updated, err := s.posts.ApplyTransition(ctx, postID, &repositories.Transition{
		From:              decision.From,
		RequireClassified: true,
		To:                decision.Status,
		ReviewedBy:        &decision.ModeratorID,
		ReviewedAt:        &reviewedAt,
		Log: models.ModerationLog{
			Action:      decision.Action,
			ModeratorID: decision.ModeratorID,
			Reason:      decision.Reason,
		},
	})
	if err != nil {
		return nil, err
	}

	metrics.Decisions.WithLabelValues(string(decision.Action), string(decision.Status)).Inc()
	s.logger.Info("Moderator decision recorded",
		zap.Int64("post_id", postID),
		zap.String("action", string(decision.Action)),
		zap.String("moderator_id", decision.ModeratorID),
		zap.String("previous_status", string(post.Status)),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// QuickClassify classifies content without persisting anything.
func (s *moderationService) QuickClassify(ctx context.Context, req *QuickClassifyRequest) (*QuickClassifyResult, error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.Validation("content", "is required")
	}
	result, err := s.classifier.Classify(ctx, req.Content, req.Context)
	if err != nil {
		return nil, err
	}
	decision := s.engine.Decide(result)
	return &QuickClassifyResult{
		Content:         req.Content,
		Analysis:        result,
		PredictedStatus: decision.Status,
		PredictedAction: decision.Action,
		Note:            decision.Note,
		Thresholds:      s.engine.Thresholds(),
		Provider:        result.Provider,
		Timestamp:       s.now().UTC(),
	}, nil
}

func (s *moderationService) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *moderationService) ListPosts(ctx context.Context, filter *models.PostFilter) (*models.PostPage, error) {
	if filter == nil {
		filter = &models.PostFilter{}
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return &models.PostPage{Posts: posts, Pagination: models.NewPagination(filter.Limit, filter.Offset, total)}, nil
}

// ListPending returns the review queue, oldest first.
func (s *moderationService) ListPending(ctx context.Context, limit, offset int) (*models.PostPage, error) {
	pending := models.StatusPending
	return s.ListPosts(ctx, &models.PostFilter{
		Status:    &pending,
		SortBy:    "created_at",
		SortOrder: models.SortAsc,
		Limit:     limit,
		Offset:    offset,
	})
}

// ListEditorial returns posts in editorial feedback scope.
func (s *moderationService) ListEditorial(ctx context.Context, filter *models.PostFilter) (*models.PostPage, error) {
	if filter == nil {
		filter = &models.PostFilter{}
	}
	filter.EditorialOnly = true
	return s.ListPosts(ctx, filter)
}

func (s *moderationService) History(ctx context.Context, postID int64) ([]*models.ModerationLog, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	logs, err := s.posts.ListLogs(ctx, postID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*models.ModerationLog{}
	}
	return logs, nil
}

func decisionMessage(status models.PostStatus) string {
	switch status {
	case models.StatusApproved:
		return "Classification complete: auto-approved"
	case models.StatusRejected:
		return "Classification complete: auto-rejected"
	default:
		return "Classification complete: awaiting manual review"
	}
}

func riskStrings(risks models.RiskList) []string {
	out := make([]string, len(risks))
	for i, r := range risks {
		out[i] = string(r)
	}
	return out
}
