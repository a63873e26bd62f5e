package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{3.7, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampScore(tt.in), "ClampScore(%v)", tt.in)
	}
}

func TestDeriveDetectedRisksIsStrictAndOrdered(t *testing.T) {
	risks := map[RiskCategory]float64{
		RiskEditorialFeedback: 0.31,
		RiskSpam:              0.3,
		RiskHarassment:        0.9,
		RiskSpoiler:           0.7,
	}
	got := DeriveDetectedRisks(risks)
	assert.Equal(t, RiskList{RiskHarassment, RiskSpoiler, RiskEditorialFeedback}, got)

	assert.Equal(t, RiskList{}, DeriveDetectedRisks(nil))
}

func TestNormalize(t *testing.T) {
	r := &ClassificationResult{
		OverallScore: 1.4,
		Risks: map[RiskCategory]float64{
			RiskSpoiler:    2,
			RiskHarassment: -1,
		},
	}
	r.Normalize()

	assert.Equal(t, 1.0, r.OverallScore)
	assert.Len(t, r.Risks, len(RiskCategories))
	assert.Equal(t, 1.0, r.Risks[RiskSpoiler])
	assert.Equal(t, 0.0, r.Risks[RiskHarassment])
	assert.Equal(t, 0.0, r.Risks[RiskPersonalInfo])
	assert.Equal(t, RiskList{RiskSpoiler}, r.DetectedRisks)
	assert.NotNil(t, r.DetectedIssues)
	assert.NotNil(t, r.DetectedPatterns)
}

func TestEditorialFlagged(t *testing.T) {
	low := &ClassificationResult{Risks: map[RiskCategory]float64{RiskEditorialFeedback: 0.2}}
	low.Normalize()
	assert.True(t, low.EditorialFlagged(), "any positive editorial score is in scope")

	none := &ClassificationResult{Risks: map[RiskCategory]float64{RiskSpam: 0.9}}
	none.Normalize()
	assert.False(t, none.EditorialFlagged())
}

func TestAnalysisRecordJSONShape(t *testing.T) {
	rec := AnalysisRecord{
		ClassificationResult: ClassificationResult{
			OverallScore: 0.5,
			Risks:        map[RiskCategory]float64{RiskSpoiler: 0.5},
			Provider:     ProvenanceExternal,
		},
		Thresholds: ThresholdSnapshot{AutoApprove: 0.3, AutoReject: 0.8},
	}
	rec.Normalize()
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, 0.5, doc["overall_score"])
	assert.Equal(t, "external", doc["ai_provider"])
	assert.Contains(t, doc, "thresholds")
	assert.Equal(t, []interface{}{"spoiler"}, doc["detected_risks"])
}
