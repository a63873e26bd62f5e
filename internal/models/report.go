package models

import (
	"time"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
)

// StatusCount is a post count for one status.
type StatusCount struct {
	Status PostStatus `json:"status"`
	Count  int64      `json:"count"`
}

// DailyStatusCount is a post count for one status on one day (UTC, YYYY-MM-DD).
type DailyStatusCount struct {
	Date   string     `json:"date"`
	Status PostStatus `json:"status"`
	Count  int64      `json:"count"`
}

// DailyActionCount is a moderation log count for one action on one day.
type DailyActionCount struct {
	Date   string    `json:"date"`
	Action LogAction `json:"action"`
	Count  int64     `json:"count"`
}

// HourlyStat aggregates posts created in one hour of the day (00-23).
type HourlyStat struct {
	Hour     string  `json:"hour"`
	Count    int64   `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// ScoreBucket is one band of the ai_score histogram.
type ScoreBucket struct {
	Range string `json:"score_range"`
	Count int64  `json:"count"`
}

// StatusBreakdown counts posts per decided status.
type StatusBreakdown struct {
	Approved int64 `json:"approved_count"`
	Pending  int64 `json:"pending_count"`
	Rejected int64 `json:"rejected_count"`
}

// AuthorRollup aggregates the posts of one author.
type AuthorRollup struct {
	UserID    string  `json:"user_id"`
	PostCount int64   `json:"post_count"`
	AvgScore  float64 `json:"avg_score"`
	StatusBreakdown
}

// WorkRollup aggregates the posts about one work.
type WorkRollup struct {
	WorkTitle string  `json:"manga_title"`
	PostCount int64   `json:"post_count"`
	AvgScore  float64 `json:"avg_score"`
	StatusBreakdown
}

// StatsSummary holds headline numbers for the dashboard.
type StatsSummary struct {
	TotalPosts      int64 `json:"total_posts"`
	PostsLastPeriod int64 `json:"posts_last_period"`
	AvgDailyPosts   int64 `json:"avg_daily_posts"`
	RiskPosts       int64 `json:"risk_posts"`
}

// ModerationStats is the dashboard statistics report for the last PeriodDays days.
type ModerationStats struct {
	PeriodDays        int                    `json:"period_days"`
	DailyStats        []DailyStatusCount     `json:"daily_stats"`
	DailyActions      []DailyActionCount     `json:"daily_actions"`
	TotalCounts       []StatusCount          `json:"total_counts"`
	ScoreDistribution []ScoreBucket          `json:"score_distribution"`
	RiskDistribution  map[RiskCategory]int64 `json:"risk_distribution"`
	HourlyStats       []HourlyStat           `json:"hourly_stats"`
	UserStats         []AuthorRollup         `json:"user_stats"`
	MangaStats        []WorkRollup           `json:"manga_stats"`
	Summary           StatsSummary           `json:"summary"`
	GeneratedAt       time.Time              `json:"generated_at"`
}

// SimilarPost is a decided post that shares keywords with a target post.
type SimilarPost struct {
	ID             int64      `json:"id"`
	Content        string     `json:"content"`
	WorkTitle      *string    `json:"manga_title"`
	AIScore        *float64   `json:"ai_score"`
	AIAnalysis     JSONText   `json:"ai_analysis"`
	DetectedRisks  RiskList   `json:"detected_risks"`
	Status         PostStatus `json:"status"`
	FinalDecision  *LogAction `json:"final_decision"`
	DecisionReason *string    `json:"decision_reason"`
	ModeratorID    *string    `json:"moderator_id"`
	CreatedAt      time.Time  `json:"created_at"`
	DecisionAt     *time.Time `json:"decision_at"`
}

// SimilarPostsResult is the response of a similar-post lookup.
type SimilarPostsResult struct {
	TargetPost struct {
		ID        int64   `json:"id"`
		Content   string  `json:"content"`
		WorkTitle *string `json:"manga_title"`
	} `json:"target_post"`
	SimilarPosts []SimilarPost `json:"similar_posts"`
	KeywordsUsed []string      `json:"keywords_used"`
}

// userActivitySortFields are the columns user activity rows may be ordered by.
var userActivitySortFields = map[string]bool{
	"user_id":         true,
	"post_count":      true,
	"avg_score":       true,
	"min_score":       true,
	"max_score":       true,
	"approved_count":  true,
	"pending_count":   true,
	"rejected_count":  true,
	"first_post_date": true,
	"last_post_date":  true,
	"risk_score":      true,
}

// UserActivityFilter filters and orders per-author activity rows.
type UserActivityFilter struct {
	UserID        string
	MinPosts      int
	MaxPosts      int
	MinAvgScore   float64
	MaxAvgScore   float64
	Risk          RiskCategory
	Status        *PostStatus
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	SortBy        string
	SortOrder     SortOrder
	Limit         int
	Offset        int
}

// Normalize validates the filter and fills defaults.
func (f *UserActivityFilter) Normalize() error {
	if f.MinPosts <= 0 {
		f.MinPosts = 1
	}
	if f.MaxPosts <= 0 {
		f.MaxPosts = 1000
	}
	if f.MinPosts > f.MaxPosts {
		return apperrors.Validation("min_posts", "must not exceed max_posts")
	}
	if f.MaxAvgScore == 0 {
		f.MaxAvgScore = 1
	}
	if f.MinAvgScore < 0 || f.MaxAvgScore > 1 || f.MinAvgScore > f.MaxAvgScore {
		return apperrors.Validation("min_avg_score", "score range must lie within [0,1]")
	}
	if f.Risk != "" && !f.Risk.Valid() {
		return apperrors.Validation("risk_type", "unknown risk category "+string(f.Risk))
	}
	if f.Status != nil && !f.Status.Valid() {
		return apperrors.Validation("status", "unknown status "+string(*f.Status))
	}
	if f.SortBy == "" {
		f.SortBy = "post_count"
	}
	if !userActivitySortFields[f.SortBy] {
		return apperrors.Validation("sort_by", "unsupported sort field "+f.SortBy)
	}
	if f.SortOrder == "" {
		f.SortOrder = SortDesc
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return nil
}

// UserActivity aggregates the activity of one author.
type UserActivity struct {
	UserID        string                 `json:"user_id"`
	PostCount     int64                  `json:"post_count"`
	AvgScore      float64                `json:"avg_score"`
	MinScore      float64                `json:"min_score"`
	MaxScore      float64                `json:"max_score"`
	RiskCounts    map[RiskCategory]int64 `json:"risk_counts"`
	FirstPostDate time.Time              `json:"first_post_date"`
	LastPostDate  time.Time              `json:"last_post_date"`
	MangaCount    int64                  `json:"manga_count"`
	MangaTitles   []string               `json:"manga_titles"`
	ActivityDays  int64                  `json:"activity_days"`
	PostsPerDay   float64                `json:"posts_per_day"`
	RiskScore     float64                `json:"risk_score"`
	StatusBreakdown
}

// UserActivityPage is one page of author activity rows.
type UserActivityPage struct {
	Users      []UserActivity `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// DailyActivity aggregates one author's posts on one day.
type DailyActivity struct {
	Date      string  `json:"date"`
	PostCount int64   `json:"post_count"`
	AvgScore  float64 `json:"avg_score"`
	StatusBreakdown
}

// WorkActivity aggregates one author's posts about one work.
type WorkActivity struct {
	WorkTitle string    `json:"manga_title"`
	PostCount int64     `json:"post_count"`
	AvgScore  float64   `json:"avg_score"`
	FirstPost time.Time `json:"first_post"`
	LastPost  time.Time `json:"last_post"`
	StatusBreakdown
}

// UserDetail is the drill-down report for one author.
type UserDetail struct {
	UserID        string                 `json:"user_id"`
	BasicStats    UserActivity           `json:"basic_stats"`
	DailyActivity []DailyActivity        `json:"daily_activity"`
	MangaActivity []WorkActivity         `json:"manga_activity"`
	RiskAnalysis  map[RiskCategory]int64 `json:"risk_analysis"`
	RecentPosts   []*Post                `json:"recent_posts"`
}
