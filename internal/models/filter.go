package models

import (
	"strings"
	"time"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// SortOrder is ASC or DESC.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ParseSortOrder accepts asc/desc in any case; empty yields def.
func ParseSortOrder(s string, def SortOrder) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "ASC":
		return SortAsc, nil
	case "DESC":
		return SortDesc, nil
	}
	return "", apperrors.Validation("sort_order", "must be ASC or DESC")
}

// postSortFields are the only columns posts may be ordered by.
var postSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"ai_score":   true,
	"user_id":    true,
	"status":     true,
}

// PostFilter represents filters for listing posts. Every field is bound as a query parameter;
// SortBy is checked against a fixed allow-list by Normalize.
type PostFilter struct {
	Status        *PostStatus
	Search        string
	UserID        string
	WorkTitle     string
	Risk          RiskCategory
	ScoreMin      *float64
	ScoreMax      *float64
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	EditorialOnly bool
	SortBy        string
	SortOrder     SortOrder
	Limit         int
	Offset        int
}

// Normalize validates the filter and fills defaults.
func (f *PostFilter) Normalize() error {
	if f.Status != nil && !f.Status.Valid() {
		return apperrors.Validation("status", "unknown status "+string(*f.Status))
	}
	if f.Risk != "" && !f.Risk.Valid() {
		return apperrors.Validation("risk_type", "unknown risk category "+string(f.Risk))
	}
	if f.ScoreMin != nil && f.ScoreMax != nil && *f.ScoreMin > *f.ScoreMax {
		return apperrors.Validation("ai_score_min", "must not exceed ai_score_max")
	}
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if !postSortFields[f.SortBy] {
		return apperrors.Validation("sort_by", "unsupported sort field "+f.SortBy)
	}
	if f.SortOrder == "" {
		f.SortOrder = SortDesc
	}
	if f.SortOrder != SortAsc && f.SortOrder != SortDesc {
		return apperrors.Validation("sort_order", "must be ASC or DESC")
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return nil
}

// OrderClause returns the ORDER BY expression built from allow-listed parts only.
func (f *PostFilter) OrderClause() string {
	return f.SortBy + " " + string(f.SortOrder) + ", id " + string(f.SortOrder)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Pagination describes a page of results.
type Pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

// NewPagination builds a Pagination for the given page window.
func NewPagination(limit, offset int, total int64) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: int64(offset+limit) < total,
	}
}

// PostPage is one page of posts.
type PostPage struct {
	Posts      []*Post    `json:"posts"`
	Pagination Pagination `json:"pagination"`
}
