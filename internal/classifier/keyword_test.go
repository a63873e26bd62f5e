package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/models"
)

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		overall   float64
		detected  models.RiskList
		issues    int
		editorial float64
	}{
		{
			name:     "spoiler",
			content:  "犯人は田中先生でした",
			overall:  0.7,
			detected: models.RiskList{models.RiskSpoiler},
			issues:   1,
		},
		{
			name:     "clean",
			content:  "今週も面白かった！",
			overall:  0.1,
			detected: models.RiskList{},
		},
		{
			name:     "phone number",
			content:  "連絡は090-1234-5678まで",
			overall:  0.9,
			detected: models.RiskList{models.RiskPersonalInfo},
			issues:   1,
		},
		{
			name:     "full width phone number",
			content:  "連絡は０９０－１２３４－５６７８まで",
			overall:  0.9,
			detected: models.RiskList{models.RiskPersonalInfo},
			issues:   1,
		},
		{
			name:     "half width katakana",
			content:  "ｸｿつまらない",
			overall:  0.6,
			detected: models.RiskList{models.RiskHarassment},
			issues:   1,
		},
		{
			name:     "url spam with harassment",
			content:  "こんなクソ漫画よりこっち https://example.com",
			overall:  0.8,
			detected: models.RiskList{models.RiskHarassment, models.RiskSpam},
			issues:   2,
		},
		{
			name:      "editorial stays below detection threshold",
			content:   "3ページ目に誤字があります",
			overall:   0.3,
			detected:  models.RiskList{},
			issues:    1,
			editorial: 0.3,
		},
	}

	k := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := k.Classify(context.Background(), tt.content, models.ClassificationContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.overall, result.OverallScore)
			assert.Equal(t, tt.detected, result.DetectedRisks)
			assert.Len(t, result.DetectedIssues, tt.issues)
			assert.Equal(t, tt.editorial, result.Risks[models.RiskEditorialFeedback])
			assert.Len(t, result.Risks, len(models.RiskCategories))
			assert.Equal(t, models.ProvenanceFallback, result.Provider)
			assert.Equal(t, keywordReasoning, result.Reasoning)
		})
	}
}

func TestKeywordClassifier_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeywordClassifier().Classify(ctx, "x", models.ClassificationContext{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	c, err := New(Config{Provider: ProviderKeyword}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &KeywordClassifier{}, c)

	c, err = New(Config{Provider: ProviderOpenAI, APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTPClassifier{}, c)

	_, err = New(Config{Provider: "gemini"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(Config{Provider: ProviderOpenAI, APIKey: "k", PromptFile: "/nonexistent/prompt.txt"}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadPromptDefault(t *testing.T) {
	p, err := LoadPrompt("")
	require.NoError(t, err)
	assert.Contains(t, p, "editorial_feedback")
}
