package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// LLM
	LLMProvider           string // "gemini" | "openai"
	LLMAPIKey             string
	LLMModel              string
	LLMBaseURL            string
	LLMTimeout            time.Duration
	LLMConcurrentRequests int

	// Limits
	MaxUploadBytes  int64
	MaxContentChars int
	RateLimitPerMin int

	// Cache
	CacheSize int
	CacheTTL  time.Duration
	RedisURL  string

	// Saved study sets (optional)
	DatabaseURL string

	// Auth (optional)
	JWTSecret string

	// Frontend
	FrontendURL string

	// Trust X-Forwarded-For / X-Real-IP; only safe behind a proxy that sets them
	TrustProxyHeaders bool
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LLMProvider:           strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "gemini")),
		LLMTimeout:            getEnvAsDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
		LLMConcurrentRequests: getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 5),
		MaxUploadBytes:        int64(getEnvAsIntOrDefault("MAX_UPLOAD_BYTES", 20*1024*1024)),
		MaxContentChars:       getEnvAsIntOrDefault("MAX_CONTENT_CHARS", 100000),
		RateLimitPerMin:       getEnvAsIntOrDefault("RATE_LIMIT_PER_MIN", 20),
		CacheSize:             getEnvAsIntOrDefault("CACHE_SIZE", 256),
		CacheTTL:              getEnvAsDurationOrDefault("CACHE_TTL", 24*time.Hour),
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		JWTSecret:             getEnvOrDefault("JWT_SECRET", ""),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		TrustProxyHeaders:     getEnvAsBoolOrDefault("TRUST_PROXY_HEADERS", false),
	}

	switch cfg.LLMProvider {
	case "openai":
		cfg.LLMAPIKey = mustGetEnv("OPENAI_API_KEY")
		cfg.LLMModel = getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
		cfg.LLMBaseURL = getEnvOrDefault("OPENAI_BASE_URL", "")
	case "gemini":
		cfg.LLMAPIKey = mustGetEnv("GEMINI_API_KEY")
		cfg.LLMModel = getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash")
	default:
		panic(fmt.Sprintf("unsupported LLM_PROVIDER %q (expected gemini or openai)", cfg.LLMProvider))
	}

	return cfg
}

// IsProduction reports whether ENV selects production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
