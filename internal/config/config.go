package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and generation workers.
type Config struct {
	Port string

	AuthToken          string
	CORSAllowedOrigins []string

	DatabaseURL string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	OpenAIAPIKey               string
	OpenAIBaseURL              string
	OpenAITimeoutMS            int
	OpenAIMaxRetries           int
	OpenAIModelPlanPrimary     string
	OpenAIModelPlanFallback    string
	OpenAIModelSummaryPrimary  string
	OpenAIModelSummaryFallback string
	OpenAIModelSynthPrimary    string
	OpenAIModelSynthFallback   string
	OpenAIImageModel           string

	SearchAPIKey     string
	SearchBaseURL    string
	SearchTimeoutMS  int
	SearchPageSize   int
	SearchCacheTTLS  int
	SearchCacheLimit int

	WorkerEnabled       bool
	WorkerConcurrency   int
	WorkerRateLimit     int
	WorkerRateWindowSec int

	JobMaxAttempts     int
	JobBackoffBaseMS   int
	JobRetainCompleted int
	JobRetainFailed    int
	JobRetainAgeHours  int

	ReportArticleCount int

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken:          getEnv("API_AUTH_TOKEN", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "reports"),

		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:              getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITimeoutMS:            getEnvInt("OPENAI_TIMEOUT_MS", 30000),
		OpenAIMaxRetries:           getEnvInt("OPENAI_MAX_RETRIES", 2),
		OpenAIModelPlanPrimary:     getEnv("OPENAI_MODEL_PLAN_PRIMARY", "gpt-4.1-mini"),
		OpenAIModelPlanFallback:    getEnv("OPENAI_MODEL_PLAN_FALLBACK", "gpt-4.1-nano"),
		OpenAIModelSummaryPrimary:  getEnv("OPENAI_MODEL_SUMMARY_PRIMARY", "gpt-4.1-mini"),
		OpenAIModelSummaryFallback: getEnv("OPENAI_MODEL_SUMMARY_FALLBACK", "gpt-4.1-nano"),
		OpenAIModelSynthPrimary:    getEnv("OPENAI_MODEL_SYNTH_PRIMARY", "gpt-4.1"),
		OpenAIModelSynthFallback:   getEnv("OPENAI_MODEL_SYNTH_FALLBACK", "gpt-4.1-mini"),
		OpenAIImageModel:           getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),

		SearchAPIKey:     getEnv("SEARCH_API_KEY", ""),
		SearchBaseURL:    getEnv("SEARCH_BASE_URL", "https://newsapi.org/v2"),
		SearchTimeoutMS:  getEnvInt("SEARCH_TIMEOUT_MS", 20000),
		SearchPageSize:   getEnvInt("SEARCH_PAGE_SIZE", 20),
		SearchCacheTTLS:  getEnvInt("SEARCH_CACHE_TTL_SECONDS", 900),
		SearchCacheLimit: getEnvInt("SEARCH_CACHE_MAX_ENTRIES", 500),

		WorkerEnabled:       getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerRateLimit:     getEnvInt("WORKER_RATE_LIMIT", 10),
		WorkerRateWindowSec: getEnvInt("WORKER_RATE_WINDOW_SECONDS", 60),

		JobMaxAttempts:     getEnvInt("JOB_MAX_ATTEMPTS", 2),
		JobBackoffBaseMS:   getEnvInt("JOB_BACKOFF_BASE_MS", 5000),
		JobRetainCompleted: getEnvInt("JOB_RETAIN_COMPLETED", 100),
		JobRetainFailed:    getEnvInt("JOB_RETAIN_FAILED", 200),
		JobRetainAgeHours:  getEnvInt("JOB_RETAIN_AGE_HOURS", 24),

		ReportArticleCount: getEnvInt("REPORT_ARTICLE_COUNT", 5),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
