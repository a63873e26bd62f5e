package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
)

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	StatusPending  PostStatus = "pending"
	StatusApproved PostStatus = "approved"
	StatusRejected PostStatus = "rejected"
	StatusFailed   PostStatus = "failed"
)

func (s PostStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// ContentType is the kind of content a post carries.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// Post represents a user submission under moderation
type Post struct {
	ID            int64       `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	UserID        string      `json:"user_id" gorm:"column:user_id;type:varchar(255);not null;index"`
	Content       string      `json:"content" gorm:"column:content;type:text;not null"`
	ContentType   ContentType `json:"content_type" gorm:"column:content_type;type:varchar(20);not null;default:'text'"`
	WorkTitle     *string     `json:"manga_title" gorm:"column:manga_title;type:varchar(255);index"`
	EpisodeNumber *int        `json:"episode_number" gorm:"column:episode_number;type:integer"`
	Status        PostStatus  `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending';index"`
	AIScore       *float64    `json:"ai_score" gorm:"column:ai_score;type:double precision"`
	AIAnalysis    JSONText    `json:"ai_analysis" gorm:"column:ai_analysis;type:text"`
	DetectedRisks RiskList    `json:"detected_risks" gorm:"column:detected_risks;type:text;not null;default:'[]'"`
	EditorialFlag bool        `json:"editorial_flag" gorm:"column:editorial_flag;not null;default:false;index"`
	CreatedAt     time.Time   `json:"created_at" gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	ReviewedBy    *string     `json:"reviewed_by" gorm:"column:reviewed_by;type:varchar(255)"`
	ReviewedAt    *time.Time  `json:"reviewed_at" gorm:"column:reviewed_at"`
}

func (Post) TableName() string { return "posts" }

// Classified reports whether a classification result has been recorded for the post.
func (p *Post) Classified() bool {
	return p.AIScore != nil
}

// Validate checks the fields required for a new submission.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return apperrors.Validation("user_id", "is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return apperrors.Validation("content", "is required")
	}
	if p.ContentType == "" {
		p.ContentType = ContentText
	}
	if p.ContentType != ContentText && p.ContentType != ContentImage {
		return apperrors.Validation("content_type", "must be 'text' or 'image'")
	}
	if p.EpisodeNumber != nil && *p.EpisodeNumber < 1 {
		return apperrors.Validation("episode_number", "must be positive")
	}
	return nil
}

// ClassificationContext returns the context sent to the classifier for this post.
func (p *Post) ClassificationContext() ClassificationContext {
	return ClassificationContext{WorkTitle: p.WorkTitle, EpisodeNumber: p.EpisodeNumber}
}

// RiskList is a list of risk categories persisted as a JSON array in a text column.
type RiskList []RiskCategory

func (r RiskList) Contains(c RiskCategory) bool {
	for _, x := range r {
		if x == c {
			return true
		}
	}
	return false
}

func (r RiskList) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]RiskCategory(r))
}

func (r RiskList) Value() (driver.Value, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *RiskList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = RiskList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into RiskList", src)
	}
	if len(raw) == 0 {
		*r = RiskList{}
		return nil
	}
	var list []RiskCategory
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("invalid detected_risks: %w", err)
	}
	*r = RiskList(list)
	return nil
}

// JSONText is an opaque JSON document stored in a text column and embedded verbatim in API output.
type JSONText []byte

func (j JSONText) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSONText) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONText(v)
	case []byte:
		*j = append(JSONText(nil), v...)
	default:
		return fmt.Errorf("cannot scan %T into JSONText", src)
	}
	return nil
}

func (j JSONText) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*j = nil
		return nil
	}
	*j = append(JSONText(nil), b...)
	return nil
}

// NewJSONText marshals v into a JSONText.
func NewJSONText(v interface{}) (JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONText(b), nil
}
