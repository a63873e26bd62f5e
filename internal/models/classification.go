package models

import (
	"time"
)

// RiskCategory is one of the fixed classifier risk categories.
type RiskCategory string

const (
	RiskHarassment           RiskCategory = "harassment"
	RiskSpoiler              RiskCategory = "spoiler"
	RiskInappropriateContent RiskCategory = "inappropriate_content"
	RiskBrandDamage          RiskCategory = "brand_damage"
	RiskSpam                 RiskCategory = "spam"
	RiskPersonalInfo         RiskCategory = "personal_info"
	RiskEditorialFeedback    RiskCategory = "editorial_feedback"
)

// RiskDetectionThreshold is the category score a result must exceed (strictly) for the
// category to be listed in detected_risks.
const RiskDetectionThreshold = 0.3

// RiskCategories lists every category in canonical order. Derived lists follow this order.
var RiskCategories = []RiskCategory{
	RiskHarassment,
	RiskSpoiler,
	RiskInappropriateContent,
	RiskBrandDamage,
	RiskSpam,
	RiskPersonalInfo,
	RiskEditorialFeedback,
}

// Valid reports whether c is part of the fixed enumeration.
func (c RiskCategory) Valid() bool {
	for _, known := range RiskCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Provenance tags where a classification came from.
type Provenance string

const (
	ProvenanceExternal Provenance = "external"
	ProvenanceFallback Provenance = "fallback"
)

// ClassificationContext carries optional metadata about where a post was written.
type ClassificationContext struct {
	WorkTitle     *string `json:"manga_title,omitempty"`
	EpisodeNumber *int    `json:"episode_number,omitempty"`
}

// ClassificationResult is the validated, normalized output of a classifier.
type ClassificationResult struct {
	OverallScore     float64                  `json:"overall_score"`
	Risks            map[RiskCategory]float64 `json:"risks"`
	Reasoning        string                   `json:"reasoning"`
	DetectedIssues   []string                 `json:"detected_issues"`
	DetectedPatterns []string                 `json:"detected_patterns"`
	ContextAnalysis  string                   `json:"context_analysis"`
	DetectedRisks    RiskList                 `json:"detected_risks"`
	Provider         Provenance               `json:"ai_provider"`
	Model            string                   `json:"model,omitempty"`
	AnalyzedAt       time.Time                `json:"analysis_timestamp"`
}

// Normalize clamps every score into [0,1], fills missing categories with zero, replaces nil
// slices with empty ones and recomputes DetectedRisks.
func (r *ClassificationResult) Normalize() {
	r.OverallScore = ClampScore(r.OverallScore)
	risks := make(map[RiskCategory]float64, len(RiskCategories))
	for _, c := range RiskCategories {
		risks[c] = ClampScore(r.Risks[c])
	}
	r.Risks = risks
	if r.DetectedIssues == nil {
		r.DetectedIssues = []string{}
	}
	if r.DetectedPatterns == nil {
		r.DetectedPatterns = []string{}
	}
	r.DetectedRisks = DeriveDetectedRisks(r.Risks)
}

// EditorialFlagged reports whether the result places the post in the editorial feedback scope.
func (r *ClassificationResult) EditorialFlagged() bool {
	return r.Risks[RiskEditorialFeedback] > 0 || r.DetectedRisks.Contains(RiskEditorialFeedback)
}

// ClampScore limits v to [0,1]. NaN becomes 0.
func ClampScore(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DeriveDetectedRisks returns, in canonical order, the categories whose score exceeds
// RiskDetectionThreshold. This is the only place the derivation is performed; stored lists
// are authoritative afterwards.
func DeriveDetectedRisks(risks map[RiskCategory]float64) RiskList {
	out := RiskList{}
	for _, c := range RiskCategories {
		if risks[c] > RiskDetectionThreshold {
			out = append(out, c)
		}
	}
	return out
}

// AnalysisRecord is the document persisted in posts.ai_analysis after a successful classification.
type AnalysisRecord struct {
	ClassificationResult
	ProcessedAt time.Time         `json:"processing_timestamp"`
	Thresholds  ThresholdSnapshot `json:"thresholds"`
}

// ThresholdSnapshot records the decision thresholds in force when a post was decided.
type ThresholdSnapshot struct {
	AutoApprove float64 `json:"auto_approve"`
	AutoReject  float64 `json:"auto_reject"`
}

// FailureDiagnostic is the document persisted in posts.ai_analysis when classification failed.
type FailureDiagnostic struct {
	Error     string    `json:"error"`
	ErrorKind string    `json:"error_kind"`
	Timestamp time.Time `json:"timestamp"`
}
