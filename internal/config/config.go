package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tropicaldog17/mangaguard/internal/classifier"
	"github.com/tropicaldog17/mangaguard/internal/db"
	"github.com/tropicaldog17/mangaguard/internal/moderation"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Port           string
	LogEnv         string
	LogLevel       string
	DB             db.Config
	Thresholds     moderation.Thresholds
	Classifier     classifier.Config
	RedisURL       string
	ReportCacheTTL time.Duration
}

// LoadDotEnv loads .env files with priority: .env.local > .env
// godotenv.Load does NOT overwrite already-set env vars,
// so OS env vars always win, .env.local wins over .env.
// Returns list of files actually loaded.
func LoadDotEnv() []string {
	candidates := []string{".env.local", ".env"}
	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("SERVER_PORT", "8080"),
		LogEnv:   getEnv("LOG_ENV", getEnv("APP_ENV", "development")),
		LogLevel: os.Getenv("LOG_LEVEL"),
		DB: db.Config{
			Driver:   getEnv("DB_DRIVER", db.DriverPostgres),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mangaguard"),
			Password: getEnv("DB_PASSWORD", "mangaguard"),
			Name:     getEnv("DB_NAME", "mangaguard"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			Path:     getEnv("DB_PATH", "mangaguard.db"),
		},
		Classifier: classifier.Config{
			Provider:   getEnv("CLASSIFIER_PROVIDER", classifier.ProviderOpenAI),
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    getEnv("OPENAI_BASE_URL", classifier.DefaultBaseURL),
			Model:      getEnv("OPENAI_MODEL", classifier.DefaultModel),
			PromptFile: os.Getenv("CLASSIFIER_PROMPT_FILE"),
		},
		RedisURL: os.Getenv("REDIS_URL"),
	}
	cfg.DB.Quiet = cfg.LogEnv == "production"

	var err error
	defaults := moderation.DefaultThresholds()
	if cfg.Thresholds.ApproveBelow, err = getFloat("AUTO_APPROVE_THRESHOLD", defaults.ApproveBelow); err != nil {
		return nil, err
	}
	if cfg.Thresholds.RejectAtOrAbove, err = getFloat("AUTO_REJECT_THRESHOLD", defaults.RejectAtOrAbove); err != nil {
		return nil, err
	}
	if cfg.Classifier.Timeout, err = getDuration("CLASSIFIER_TIMEOUT", classifier.MaxTimeout); err != nil {
		return nil, err
	}
	if cfg.ReportCacheTTL, err = getDuration("REPORT_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	switch c.DB.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", db.DriverPostgres, db.DriverSQLite, c.DB.Driver)
	}
	switch c.Classifier.Provider {
	case classifier.ProviderOpenAI:
		if c.Classifier.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when CLASSIFIER_PROVIDER=%s", classifier.ProviderOpenAI)
		}
	case classifier.ProviderKeyword:
	default:
		return fmt.Errorf("CLASSIFIER_PROVIDER must be %q or %q, got %q",
			classifier.ProviderOpenAI, classifier.ProviderKeyword, c.Classifier.Provider)
	}
	if c.Classifier.Timeout <= 0 || c.Classifier.Timeout > classifier.MaxTimeout {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be within (0s, %s]", classifier.MaxTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
