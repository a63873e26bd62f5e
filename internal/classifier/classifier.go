package classifier

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/models"
)

// Classifier scores a piece of user content against the fixed risk categories.
// Implementations return either a fully normalized result or an error matching
// ErrClassifierUnavailable or ErrClassifierResponseInvalid, never a partial result.
type Classifier interface {
	Classify(ctx context.Context, content string, cc models.ClassificationContext) (*models.ClassificationResult, error)
}

const (
	ProviderOpenAI  = "openai"
	ProviderKeyword = "keyword"

	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	MaxTimeout     = 30 * time.Second
)

//go:embed prompt.txt
var defaultPrompt string

// Config selects and configures the classifier provider.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	PromptFile string
}

// New builds the classifier named by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Classifier, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		prompt, err := LoadPrompt(cfg.PromptFile)
		if err != nil {
			return nil, err
		}
		return NewHTTPClassifier(cfg, prompt, logger)
	case ProviderKeyword:
		logger.Warn("Using keyword classifier; scores are heuristic")
		return NewKeywordClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// LoadPrompt returns the system prompt from path, or the built-in prompt when path is empty.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return defaultPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read classifier prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", fmt.Errorf("classifier prompt file %s is empty", path)
	}
	return prompt, nil
}

// userPrompt renders the per-request prompt carrying the content and its work context.
func userPrompt(content string, cc models.ClassificationContext) string {
	contextInfo := "作品情報なし"
	if cc.WorkTitle != nil && *cc.WorkTitle != "" {
		contextInfo = "作品: " + *cc.WorkTitle
		if cc.EpisodeNumber != nil {
			contextInfo += fmt.Sprintf(" 第%d話", *cc.EpisodeNumber)
		}
	}
	return fmt.Sprintf("投稿内容: %q\nコンテキスト: %s\n\n上記の投稿を分析してください。", content, contextInfo)
}
