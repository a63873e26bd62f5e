package models

import "time"

// LogAction is the kind of transition recorded in the moderation log.
type LogAction string

const (
	ActionAIReview         LogAction = "ai_review"
	ActionAutoApprove      LogAction = "auto_approve"
	ActionAutoReject       LogAction = "auto_reject"
	ActionApprove          LogAction = "approve"
	ActionReject           LogAction = "reject"
	ActionApproveEditorial LogAction = "approve_editorial"
	ActionRejectEditorial  LogAction = "reject_editorial"
)

// SystemModeratorID identifies transitions made by the classification pipeline.
const SystemModeratorID = "ai_system"

// IsModeratorAction reports whether a moderator may request this action.
func (a LogAction) IsModeratorAction() bool {
	switch a {
	case ActionApprove, ActionReject, ActionApproveEditorial, ActionRejectEditorial:
		return true
	}
	return false
}

// IsEditorial reports whether the action belongs to the editorial feedback pair.
func (a LogAction) IsEditorial() bool {
	return a == ActionApproveEditorial || a == ActionRejectEditorial
}

// ModerationLog is an append-only audit record of a single post status transition.
type ModerationLog struct {
	ID             int64      `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	PostID         int64      `json:"post_id" gorm:"column:post_id;not null;index"`
	Action         LogAction  `json:"action" gorm:"column:action;type:varchar(50);not null;index"`
	ModeratorID    string     `json:"moderator_id" gorm:"column:moderator_id;type:varchar(255);not null"`
	Reason         string     `json:"reason" gorm:"column:reason;type:text"`
	PreviousStatus PostStatus `json:"previous_status" gorm:"column:previous_status;type:varchar(20);not null"`
	NewStatus      PostStatus `json:"new_status" gorm:"column:new_status;type:varchar(20);not null"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime;index"`

	Post *Post `json:"-" gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:RESTRICT"`
}

func (ModerationLog) TableName() string { return "moderation_logs" }
