package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"chatpulse/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Analysis      AnalysisConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"chatpulse"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// PostgresConfig configures the influence/profile/insight store.
// Leave POSTGRES_HOST empty to run without persistence.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"chatpulse"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"chatpulse"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	ReportTTL time.Duration `envconfig:"REDIS_REPORT_TTL" default:"24h"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"chatpulse"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_ANALYSIS_TOPIC" default:"analysis.completed"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type AIConfig struct {
	APIKey            string        `envconfig:"AI_API_KEY"`
	BaseURL           string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	Model             string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timeout           time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	Temperature       float64       `envconfig:"AI_TEMPERATURE" default:"0.2"`
	MaxTokens         int           `envconfig:"AI_MAX_TOKENS" default:"2048"`
	RequestsPerMinute float64       `envconfig:"AI_REQUESTS_PER_MINUTE" default:"60"`
	MaxConcurrency    int           `envconfig:"AI_MAX_CONCURRENCY" default:"4"`
}

// AnalysisConfig holds the tunables of the influence pipeline. Window sizes
// and weights change scoring semantics; the defaults match the documented
// formula and should only be overridden for A/B weight tuning.
type AnalysisConfig struct {
	WindowSize        time.Duration `envconfig:"ANALYSIS_WINDOW_SIZE" default:"10m"`
	MinWindowMessages int           `envconfig:"ANALYSIS_MIN_WINDOW_MESSAGES" default:"5"`
	TopN              int           `envconfig:"ANALYSIS_TOP_N" default:"10"`
	MaxPromptMessages int           `envconfig:"ANALYSIS_MAX_PROMPT_MESSAGES" default:"50"`
	MaxMessageChars   int           `envconfig:"ANALYSIS_MAX_MESSAGE_CHARS" default:"200"`

	WeightForwardLooking   float64 `envconfig:"ANALYSIS_WEIGHT_FORWARD" default:"3.0"`
	WeightCitation         float64 `envconfig:"ANALYSIS_WEIGHT_CITATION" default:"2.0"`
	WeightBehaviorChange   float64 `envconfig:"ANALYSIS_WEIGHT_BEHAVIOR" default:"4.0"`
	WeightEventPresence    float64 `envconfig:"ANALYSIS_WEIGHT_EVENT" default:"2.5"`
	WeightHindsightPenalty float64 `envconfig:"ANALYSIS_WEIGHT_HINDSIGHT" default:"1.5"`
	WeightEmotionalPenalty float64 `envconfig:"ANALYSIS_WEIGHT_EMOTIONAL" default:"0.5"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads configuration from the environment (and .env when present)
func Load() (*Config, error) {
	// .env is optional, ignore if missing
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would corrupt scoring semantics
func (c *Config) Validate() error {
	weights := map[string]float64{
		"ANALYSIS_WEIGHT_FORWARD":   c.Analysis.WeightForwardLooking,
		"ANALYSIS_WEIGHT_CITATION":  c.Analysis.WeightCitation,
		"ANALYSIS_WEIGHT_BEHAVIOR":  c.Analysis.WeightBehaviorChange,
		"ANALYSIS_WEIGHT_EVENT":     c.Analysis.WeightEventPresence,
		"ANALYSIS_WEIGHT_HINDSIGHT": c.Analysis.WeightHindsightPenalty,
		"ANALYSIS_WEIGHT_EMOTIONAL": c.Analysis.WeightEmotionalPenalty,
	}
	for field, v := range weights {
		if v < 0 {
			return errors.NewValidationError(field, "must be non-negative", v)
		}
	}

	if c.Analysis.TopN <= 0 {
		return errors.NewValidationError("ANALYSIS_TOP_N", "must be positive", c.Analysis.TopN)
	}
	if c.Analysis.WindowSize <= 0 {
		return errors.NewValidationError("ANALYSIS_WINDOW_SIZE", "must be positive", c.Analysis.WindowSize)
	}
	if c.Analysis.MinWindowMessages <= 0 {
		return errors.NewValidationError("ANALYSIS_MIN_WINDOW_MESSAGES", "must be positive", c.Analysis.MinWindowMessages)
	}

	return nil
}
