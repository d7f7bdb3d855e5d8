package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string `validate:"oneof=dev local staging production"`
	AppURL          string
	TunnelURL       string

	ObjectStoreType string `validate:"oneof=local s3"`
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string `validate:"required_if=ObjectStoreType s3"`
	S3Prefix        string
	SSEKMSKeyID     string

	DatabaseURL string

	WorkflowBaseURL           string        `validate:"omitempty,url"`
	WorkflowAPIKey            string        `validate:"required_if=Env production"`
	WorkflowCallbackURL       string        `validate:"omitempty,url"`
	WorkflowTimeout           time.Duration `validate:"gt=0"`
	WorkflowParsePath         string        `validate:"required"`
	WorkflowGeneratePath      string        `validate:"required"`
	WorkflowKnowledgeBasePath string        `validate:"required"`

	StatusBackend       string        `validate:"oneof=memory redis"`
	StatusTTL           time.Duration `validate:"gt=0"`
	StatusSweepInterval time.Duration `validate:"gt=0"`
	RedisAddr           string        `validate:"required_if=StatusBackend redis"`
	RedisPassword       string
	RedisDB             int `validate:"gte=0"`

	CallbackQueueURL            string
	CallbackWorkers             int `validate:"gte=1"`
	CallbackQueueSize           int `validate:"gte=1"`
	CallbackFailureClearsStatus bool

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret      string `validate:"required_if=Env production"`
	AllowDevHeader bool

	RateLimitPerMinute       int `validate:"gte=0"`
	RateLimitSubmitPerMinute int `validate:"gte=0"`
	RateLimitPollPerMinute   int `validate:"gte=0"`

	WorkerConcurrency       int `validate:"gte=1"`
	WorkerVisibilityTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		AppURL:          getEnv("APP_URL", "http://localhost:8080"),
		TunnelURL:       getEnv("TUNNEL_URL", ""),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		DatabaseURL: dbURL,

		WorkflowBaseURL:           getEnv("WORKFLOW_URL", ""),
		WorkflowAPIKey:            getEnv("WORKFLOW_API_KEY", ""),
		WorkflowCallbackURL:       getEnv("WORKFLOW_CALLBACK_URL", ""),
		WorkflowTimeout:           getEnvDuration("WORKFLOW_TIMEOUT", 10*time.Second),
		WorkflowParsePath:         getEnv("WORKFLOW_PARSE_PATH", "parse-resume"),
		WorkflowGeneratePath:      getEnv("WORKFLOW_GENERATE_PATH", "generate-resume"),
		WorkflowKnowledgeBasePath: getEnv("WORKFLOW_KNOWLEDGE_BASE_PATH", "generate-knowledge-base"),

		StatusBackend:       normalizeStatusBackend(getEnv("STATUS_BACKEND", "memory")),
		StatusTTL:           getEnvDuration("STATUS_TTL", 30*time.Minute),
		StatusSweepInterval: getEnvDuration("STATUS_SWEEP_INTERVAL", time.Minute),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),

		CallbackQueueURL:            getEnv("RA_SQS_QUEUE_URL", ""),
		CallbackWorkers:             getEnvInt("CALLBACK_WORKERS", 4),
		CallbackQueueSize:           getEnvInt("CALLBACK_QUEUE_SIZE", 256),
		CallbackFailureClearsStatus: getEnvBool("CALLBACK_FAILURE_CLEARS_STATUS", false),

		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "resume.processing"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowDevHeader: getEnvBool("ALLOW_DEV_USER_HEADER", env == "dev" || env == "local"),

		RateLimitPerMinute:       getEnvInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitSubmitPerMinute: getEnvInt("RATE_LIMIT_SUBMIT_PER_MIN", 20),
		RateLimitPollPerMinute:   getEnvInt("RATE_LIMIT_POLL_PER_MIN", 240),

		WorkerConcurrency:       getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerVisibilityTimeout: getEnvDuration("WORKER_VISIBILITY_TIMEOUT", 5*time.Minute),
	}
}

var validate = validator.New()

// Validate checks cross-field requirements that Load cannot express as defaults.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeStatusBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	default:
		return "memory"
	}
}
