package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for both the API server and the worker.
type Config struct {
	// Server settings
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// PostgreSQL settings
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNECTIONS" default:"10"`

	// RabbitMQ settings
	RabbitMQURL          string `envconfig:"RABBITMQ_URL" required:"true"`
	GenerationTaskQueue  string `envconfig:"GENERATION_TASK_QUEUE" default:"story_generation_tasks"`
	GenerationRetryQueue string `envconfig:"GENERATION_RETRY_QUEUE" default:"story_generation_tasks.retry"`
	DomainEventsQueue    string `envconfig:"DOMAIN_EVENTS_QUEUE" default:"story_domain_events"`

	// Job retry policy. The schedule is data, not code: attempt N waits
	// RetryBackoffBase * RetryBackoffFactor^(N-1).
	RetryMaxAttempts   int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoffBase   time.Duration `envconfig:"RETRY_BACKOFF_BASE" default:"5s"`
	RetryBackoffFactor int           `envconfig:"RETRY_BACKOFF_FACTOR" default:"5"`

	// Redis settings (job inbox for consumer idempotency)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Content generation provider
	AIClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"` // openai or ollama
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIAPIKey     string        `envconfig:"AI_API_KEY" default:""`
	AIModel      string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"180s"`

	// Translation
	DirectLanguages     string        `envconfig:"DIRECT_LANGUAGES" default:"EN,ES,FR,DE,IT,PT"`
	ProviderALanguages  string        `envconfig:"TRANSLATION_PROVIDER_A_LANGUAGES" default:"JA,ZH,KO,NL,PL,RU"`
	DeepLAPIURL         string        `envconfig:"DEEPL_API_URL" default:"https://api-free.deepl.com"`
	DeepLAPIKey         string        `envconfig:"DEEPL_API_KEY" default:""`
	TranslationTimeout  time.Duration `envconfig:"TRANSLATION_TIMEOUT" default:"60s"`
	TranslationMaxChars int           `envconfig:"TRANSLATION_MAX_CHARS" default:"4800"`

	// Image generation provider
	ImageProvider      string        `envconfig:"IMAGE_PROVIDER" default:"openai"` // openai or sana
	SanaServerURL      string        `envconfig:"SANA_SERVER_URL" default:"http://localhost:8001"`
	SanaTimeout        time.Duration `envconfig:"SANA_TIMEOUT" default:"120s"`
	ImageSavePath      string        `envconfig:"IMAGE_SAVE_PATH" default:"/data/images"`
	ImagePublicBaseURL string        `envconfig:"IMAGE_PUBLIC_BASE_URL" default:"http://localhost:8080/images"`
	PromptStyleSuffix  string        `envconfig:"PROMPT_STYLE_SUFFIX" default:", children's book illustration, soft watercolor style"`

	// Quota
	MonthlyStoryLimit int `envconfig:"MONTHLY_STORY_LIMIT" default:"3"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RetryBackoff materializes the backoff schedule, one delay per retryable attempt.
func (c *Config) RetryBackoff() []time.Duration {
	schedule := make([]time.Duration, 0, c.RetryMaxAttempts)
	delay := c.RetryBackoffBase
	for i := 0; i < c.RetryMaxAttempts; i++ {
		schedule = append(schedule, delay)
		delay *= time.Duration(c.RetryBackoffFactor)
	}
	return schedule
}

// SplitLanguageCodes parses a comma-separated language list into uppercased codes.
func SplitLanguageCodes(raw string) []string {
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		code := strings.ToUpper(strings.TrimSpace(p))
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}
