package moderation

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/models"
)

// Thresholds split the overall score into the approve, review and reject bands.
type Thresholds struct {
	ApproveBelow    float64 `json:"auto_approve"`
	RejectAtOrAbove float64 `json:"auto_reject"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{ApproveBelow: 0.3, RejectAtOrAbove: 0.8}
}

// Validate requires 0 <= ApproveBelow <= RejectAtOrAbove <= 1. NaN is rejected.
func (t Thresholds) Validate() error {
	if !inUnitInterval(t.ApproveBelow) {
		return apperrors.Validation("auto_approve_threshold", "must lie within [0,1]")
	}
	if !inUnitInterval(t.RejectAtOrAbove) {
		return apperrors.Validation("auto_reject_threshold", "must lie within [0,1]")
	}
	if t.ApproveBelow > t.RejectAtOrAbove {
		return apperrors.Validation("auto_approve_threshold", "must not exceed auto_reject_threshold")
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (t Thresholds) Snapshot() models.ThresholdSnapshot {
	return models.ThresholdSnapshot{AutoApprove: t.ApproveBelow, AutoReject: t.RejectAtOrAbove}
}

// Decision is the outcome of the automatic path.
type Decision struct {
	Status models.PostStatus
	Action models.LogAction
	Note   string
}

// ModeratorDecision is the outcome of a moderator request. From lists the statuses
// the post may be in when the transition is applied.
type ModeratorDecision struct {
	Status      models.PostStatus
	Action      models.LogAction
	ModeratorID string
	Reason      string
	From        []models.PostStatus
}

// ModeratorSources are the statuses a classified post may be in for a moderator action.
// A decided post may be re-reviewed; failed posts must be re-analyzed first.
var ModeratorSources = []models.PostStatus{models.StatusPending, models.StatusApproved, models.StatusRejected}

const defaultEditorialApprovalReason = "Editorial feedback acknowledged"

// Engine maps classification results and moderator requests onto post transitions.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
}

// NewEngine returns an Engine, rejecting invalid thresholds.
func NewEngine(t Thresholds) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decision thresholds: %w", err)
	}
	return &Engine{thresholds: t}, nil
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Decide places result.OverallScore in a band. Approve is strict, reject is inclusive.
func (e *Engine) Decide(result *models.ClassificationResult) Decision {
	score := result.OverallScore
	switch {
	case score < e.thresholds.ApproveBelow:
		return Decision{
			Status: models.StatusApproved,
			Action: models.ActionAutoApprove,
			Note:   fmt.Sprintf("Auto-approved: score %.3f below %.3f", score, e.thresholds.ApproveBelow),
		}
	case score >= e.thresholds.RejectAtOrAbove:
		return Decision{
			Status: models.StatusRejected,
			Action: models.ActionAutoReject,
			Note:   fmt.Sprintf("Auto-rejected: score %.3f at or above %.3f", score, e.thresholds.RejectAtOrAbove),
		}
	default:
		return Decision{
			Status: models.StatusPending,
			Action: models.ActionAIReview,
			Note:   fmt.Sprintf("Manual review required: score %.3f", score),
		}
	}
}

// LogReason joins the classifier reasoning and the decision note into the audit reason.
func (d Decision) LogReason(result *models.ClassificationResult) string {
	reasoning := strings.TrimSpace(result.Reasoning)
	if reasoning == "" {
		return d.Note
	}
	return strings.TrimRight(reasoning, ".。") + ". " + d.Note
}

// ApplyModeratorDecision validates a moderator request against post and returns the
// transition to apply.
func (e *Engine) ApplyModeratorDecision(post *models.Post, action models.LogAction, moderatorID, reason string) (*ModeratorDecision, error) {
	if !action.IsModeratorAction() {
		return nil, apperrors.Validation("action", "unknown moderator action "+string(action))
	}
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return nil, apperrors.Validation("moderator_id", "is required")
	}
	reason = strings.TrimSpace(reason)

	var status models.PostStatus
	switch action {
	case models.ActionApprove, models.ActionApproveEditorial:
		status = models.StatusApproved
	case models.ActionReject, models.ActionRejectEditorial:
		status = models.StatusRejected
		if reason == "" {
			return nil, apperrors.Validation("reason", "is required to reject a post")
		}
	}

	if action.IsEditorial() {
		if !post.EditorialFlag {
			return nil, fmt.Errorf("%w: post %d is not in editorial feedback scope", apperrors.ErrPreconditionFailed, post.ID)
		}
		if reason == "" {
			reason = defaultEditorialApprovalReason
		}
	}

	if post.Status == models.StatusFailed || !post.Classified() {
		return nil, fmt.Errorf("%w: post %d has no classification (status %s)", apperrors.ErrConflict, post.ID, post.Status)
	}

	return &ModeratorDecision{
		Status:      status,
		Action:      action,
		ModeratorID: moderatorID,
		Reason:      reason,
		From:        ModeratorSources,
	}, nil
}
