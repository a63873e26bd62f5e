package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
	"github.com/tropicaldog17/mangaguard/internal/metrics"
	"github.com/tropicaldog17/mangaguard/internal/models"
)

const (
	temperature = 0.3
	maxTokens   = 500

	// consecutive upstream failures that open the breaker
	breakerTripAfter = 5
	breakerCooldown  = 30 * time.Second
	maxErrorBody     = 512
)

// HTTPClassifier calls an OpenAI-compatible chat completions endpoint.
type HTTPClassifier struct {
	apiKey     string
	baseURL    string
	model      string
	prompt     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	now        func() time.Time
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// rawResult mirrors the JSON object the model is asked to produce. Pointer fields
// distinguish a missing value from zero.
type rawResult struct {
	OverallScore     *float64            `json:"overall_score"`
	Risks            map[string]*float64 `json:"risks"`
	Reasoning        string              `json:"reasoning"`
	DetectedIssues   []string            `json:"detected_issues"`
	DetectedPatterns []string            `json:"detected_patterns"`
	ContextAnalysis  string              `json:"context_analysis"`
}

// NewHTTPClassifier creates the external classifier. Timeout is capped at MaxTimeout.
func NewHTTPClassifier(cfg Config, prompt string, logger *zap.Logger) (*HTTPClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("classifier API key is required for provider %s", ProviderOpenAI)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if prompt == "" {
		prompt = defaultPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &HTTPClassifier{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		prompt:  prompt,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		now:    time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.ClassifierBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return c, nil
}

// Classify sends content to the model and returns the validated result.
func (c *HTTPClassifier) Classify(ctx context.Context, content string, cc models.ClassificationContext) (*models.ClassificationResult, error) {
	start := time.Now()
	result, err := c.classify(ctx, content, cc)
	metrics.ClassifierDuration.WithLabelValues(string(models.ProvenanceExternal)).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = apperrors.Kind(err)
		c.logger.Warn("Classification failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	}
	metrics.ClassifierCalls.WithLabelValues(string(models.ProvenanceExternal), outcome).Inc()
	return result, err
}

func (c *HTTPClassifier) classify(ctx context.Context, content string, cc models.ClassificationContext) (*models.ClassificationResult, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.prompt},
			{Role: "user", Content: userPrompt(content, cc)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifier request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, reqBody)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrClassifierUnavailable, err)
		}
		return nil, err
	}

	var envelope chatResponse
	if err := json.Unmarshal(out.([]byte), &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", apperrors.ErrClassifierResponseInvalid, err)
	}
	if len(envelope.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", apperrors.ErrClassifierResponseInvalid)
	}

	result, err := parseResult(envelope.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	result.Provider = models.ProvenanceExternal
	result.Model = envelope.Model
	if result.Model == "" {
		result.Model = c.model
	}
	result.AnalyzedAt = c.now().UTC()
	return result, nil
}

// post performs the HTTP round trip. Only transport failures and non-2xx statuses
// are reported as errors so that the breaker counts upstream outages, not bad payloads.
func (c *HTTPClassifier) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: upstream returned status %d: %s",
			apperrors.ErrClassifierUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", apperrors.ErrClassifierUnavailable, err)
	}
	return b, nil
}

// parseResult extracts the outermost JSON object from the model output and validates it.
func parseResult(text string) (*models.ClassificationResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", apperrors.ErrClassifierResponseInvalid)
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrClassifierResponseInvalid, err)
	}
	if raw.OverallScore == nil {
		return nil, fmt.Errorf("%w: overall_score missing", apperrors.ErrClassifierResponseInvalid)
	}
	if raw.Risks == nil {
		return nil, fmt.Errorf("%w: risks missing", apperrors.ErrClassifierResponseInvalid)
	}

	risks := make(map[models.RiskCategory]float64, len(models.RiskCategories))
	for _, cat := range models.RiskCategories {
		v, ok := raw.Risks[string(cat)]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: risks.%s missing", apperrors.ErrClassifierResponseInvalid, cat)
		}
		risks[cat] = *v
	}

	result := &models.ClassificationResult{
		OverallScore:     *raw.OverallScore,
		Risks:            risks,
		Reasoning:        raw.Reasoning,
		DetectedIssues:   raw.DetectedIssues,
		DetectedPatterns: raw.DetectedPatterns,
		ContextAnalysis:  raw.ContextAnalysis,
	}
	result.Normalize()
	return result, nil
}
