package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"receipts-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string

	ObjectStoreType string
	LocalStoreDir   string
	DocumentsPrefix string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	CacheBackend string
	CacheKey     string
	DatabaseURL  string

	LLMProvider        string
	LLMEndpoint        string
	LLMAPIKey          string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMTimeout         time.Duration
	LLMMaxRetries      int
	LLMBreakerFailures int
	LLMBreakerCooldown time.Duration
	PDFTimeout         time.Duration

	HeavyRateLimit float64
	HeavyRateBurst int

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	cacheBackend := normalizeCacheBackend(getEnv("CACHE_BACKEND", "object"))
	dbURL := os.Getenv("DATABASE_URL")

	if cacheBackend == "postgres" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"cache_backend": cacheBackend})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:             env,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./documents"),
		DocumentsPrefix: getEnv("DOCUMENTS_PREFIX", ""),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		CacheBackend: cacheBackend,
		CacheKey:     getEnv("CACHE_KEY", "analysis-cache/receipts.json"),
		DatabaseURL:  dbURL,

		LLMProvider:        normalizeProvider(getEnv("LLM_PROVIDER", "ollama")),
		LLMEndpoint:        getEnv("LLM_ENDPOINT", "http://localhost:11434"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "gemma2:27b"),
		LLMTemperature:     getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:       getEnvInt("LLM_MAX_TOKENS", 1000),
		LLMTimeout:         getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxRetries:      getEnvInt("LLM_MAX_RETRIES", 1),
		LLMBreakerFailures: getEnvInt("LLM_BREAKER_FAILURES", 3),
		LLMBreakerCooldown: getEnvDuration("LLM_BREAKER_COOLDOWN", 30*time.Second),
		PDFTimeout:         getEnvDuration("PDF_TIMEOUT", 30*time.Second),

		HeavyRateLimit: getEnvFloat("RATE_LIMIT_HEAVY_RPS", 1),
		HeavyRateBurst: getEnvInt("RATE_LIMIT_HEAVY_BURST", 10),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),
	}
}

// TelemetryOptions maps the logging settings onto telemetry.Options.
func (c Config) TelemetryOptions() telemetry.Options {
	return telemetry.Options{
		Level:      c.LogLevel,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_float", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
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

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg", "postgresql":
		return "postgres"
	case "memory", "mem":
		return "memory"
	default:
		return "object"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "off", "disabled":
		return "none"
	case "openai", "openai-compatible":
		return "openai"
	default:
		return "ollama"
	}
}
