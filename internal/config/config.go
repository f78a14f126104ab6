package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	DocforgeAPIKey string

	// Completion backend
	LLMProvider    string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTimeout     time.Duration
	LLMTemperature float64
	LLMMaxTokens   int
	LLMRatePerSec  float64

	// Cache and retry
	CacheTTL           time.Duration
	RetryMax           int
	RetryBackoffFactor float64
	RetryInitialWait   time.Duration

	// Generation
	GenerationWorkers int
	GenerationMode    string
	MaxPolishChars    int

	// Job pool
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Files
	OutputDir   string
	TemplateDir string

	// Remote template store (optional)
	PathstoreURL    string
	PathstoreAPIKey string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DocforgeAPIKey: os.Getenv("DOCFORGE_API_KEY"),

		LLMProvider:    envOr("LLM_PROVIDER", "openai"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMBaseURL:     os.Getenv("LLM_BASE_URL"),
		LLMModel:       envOr("LLM_MODEL", "deepseek-chat"),
		LLMTimeout:     envDuration("LLM_TIMEOUT", 15*time.Second),
		LLMTemperature: envFloat("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:   envInt("LLM_MAX_TOKENS", 2000),
		LLMRatePerSec:  envFloat("LLM_RATE_PER_SEC", 5),

		CacheTTL:           envDuration("CACHE_TTL", 30*time.Second),
		RetryMax:           envInt("RETRY_MAX", 3),
		RetryBackoffFactor: envFloat("RETRY_BACKOFF_FACTOR", 2),
		RetryInitialWait:   envDuration("RETRY_INITIAL_WAIT", time.Second),

		GenerationWorkers: envInt("GENERATION_WORKERS", 5),
		GenerationMode:    envOr("GENERATION_MODE", "parallel"),
		MaxPolishChars:    envInt("MAX_POLISH_CHARS", 1000),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		OutputDir:   envOr("OUTPUT_DIR", filepath.Join(os.TempDir(), "docforge")),
		TemplateDir: os.Getenv("TEMPLATE_DIR"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
	}

	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 15 * time.Second
	}
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = 2000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBackoffFactor < 1 {
		cfg.RetryBackoffFactor = 2
	}
	if cfg.RetryInitialWait <= 0 {
		cfg.RetryInitialWait = time.Second
	}
	if cfg.GenerationWorkers <= 0 {
		cfg.GenerationWorkers = 5
	}
	if cfg.MaxPolishChars <= 0 {
		cfg.MaxPolishChars = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}

	return cfg
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.DocforgeAPIKey == "" {
		return fmt.Errorf("DOCFORGE_API_KEY is required")
	}
	return c.ValidateLLM()
}

// ValidateLLM checks only the completion backend settings. The CLI uses it
// since it has no HTTP surface to protect.
func (c Config) ValidateLLM() error {
	switch c.LLMProvider {
	case "openai", "claude", "gemini":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai, claude or gemini (got %q)", c.LLMProvider)
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	switch c.GenerationMode {
	case "sequential", "batch", "parallel":
	default:
		return fmt.Errorf("GENERATION_MODE must be sequential, batch or parallel (got %q)", c.GenerationMode)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
