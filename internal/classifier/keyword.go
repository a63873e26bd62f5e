package classifier

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tropicaldog17/mangaguard/internal/metrics"
	"github.com/tropicaldog17/mangaguard/internal/models"
)

const keywordReasoning = "キーワードベースの基本分析（フォールバック）"

var (
	phonePattern = regexp.MustCompile(`\d{3}-\d{4}-\d{4}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
)

type keywordRule struct {
	category models.RiskCategory
	score    float64
	issue    string
	keywords []string
	patterns []*regexp.Regexp
}

// Rule order fixes the order of detected issues in the result.
var keywordRules = []keywordRule{
	{
		category: models.RiskSpoiler,
		score:    0.7,
		issue:    "ネタバレの可能性",
		keywords: []string{"死ぬ", "犯人", "結末", "ラスボス", "正体", "秘密", "最終回", "最後"},
	},
	{
		category: models.RiskHarassment,
		score:    0.6,
		issue:    "攻撃的な表現",
		keywords: []string{"クソ", "最悪", "むかつく", "才能がない", "無駄", "ひどい", "バカ"},
	},
	{
		category: models.RiskPersonalInfo,
		score:    0.9,
		issue:    "個人情報を含む可能性",
		patterns: []*regexp.Regexp{phonePattern, emailPattern},
	},
	{
		category: models.RiskSpam,
		score:    0.8,
		issue:    "スパム・宣伝の可能性",
		keywords: []string{"フォロバ", "チャンネル登録", "サイトをチェック", "格安", "連絡ください"},
		patterns: []*regexp.Regexp{urlPattern},
	},
	{
		category: models.RiskEditorialFeedback,
		score:    0.3,
		issue:    "編集・校正指摘の可能性",
		keywords: []string{"誤字", "脱字", "間違ってる", "矛盾", "設定が", "おかしくない", "文法"},
	},
}

func (r keywordRule) matches(content, lowered string) bool {
	for _, k := range r.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	for _, p := range r.patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

// KeywordClassifier is a local heuristic provider used when no external model is configured.
// Its results carry the fallback provenance.
type KeywordClassifier struct {
	now func() time.Time
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{now: time.Now}
}

func (k *KeywordClassifier) Classify(ctx context.Context, content string, _ models.ClassificationContext) (*models.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.ClassifierDuration.WithLabelValues(string(models.ProvenanceFallback)).Observe(time.Since(start).Seconds())
		metrics.ClassifierCalls.WithLabelValues(string(models.ProvenanceFallback), "ok").Inc()
	}()

	// fold full-width digits/latin and half-width katakana so rules see one spelling
	folded := norm.NFKC.String(content)
	lowered := strings.ToLower(folded)
	overall := 0.1
	risks := make(map[models.RiskCategory]float64, len(models.RiskCategories))
	issues := []string{}

	for _, rule := range keywordRules {
		if !rule.matches(folded, lowered) {
			continue
		}
		risks[rule.category] = rule.score
		if rule.score > overall {
			overall = rule.score
		}
		issues = append(issues, rule.issue)
	}

	result := &models.ClassificationResult{
		OverallScore:   overall,
		Risks:          risks,
		Reasoning:      keywordReasoning,
		DetectedIssues: issues,
		Provider:       models.ProvenanceFallback,
		AnalyzedAt:     k.now().UTC(),
	}
	result.Normalize()
	return result, nil
}
