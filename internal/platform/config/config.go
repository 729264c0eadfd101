// Package config loads application configuration from environment variables.
// All variables use the QUIZ_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	AI       AIConfig
	Auth     AuthConfig
	Credits  CreditsConfig
	Quiz     QuizConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Host           string
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. The cache backs the per-owner credit lock.
type CacheConfig struct {
	Enabled bool
	URL     string
	LockTTL time.Duration
}

// AIConfig holds configuration for all AI providers and the task routing.
type AIConfig struct {
	OpenAI     OpenAIConfig
	DeepSeek   DeepSeekConfig
	Google     GoogleConfig
	Ollama     OllamaConfig
	OpenRouter OpenRouterConfig
	Generation TaskRoute
	ClearUp    TaskRoute
	Grading    TaskRoute
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// TaskRoute pins a task to a provider and model. Empty fields fall back to the default
// provider and its default model.
type TaskRoute struct {
	Provider string
	Model    string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	JWTSecret string
}

// CreditsConfig holds the billing rates. RatesFile, when set, overrides them.
type CreditsConfig struct {
	TextPerPage  float64
	ImagePerPage float64
	PerQuestion  float64
	RatesFile    string
}

// MaxRoundSize caps how many questions a single generation call may ask for.
const MaxRoundSize = 20

// QuizConfig bounds what callers may request.
type QuizConfig struct {
	MinQuestions    int
	MaxQuestions    int
	RoundSize       int
	ClearUpSegments int
	MaxPages        int
	MinTextChars    int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with QUIZ_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("QUIZ_SERVER_PORT", 8080),
			Host:           envStr("QUIZ_SERVER_HOST", "0.0.0.0"),
			CORSOrigins:    envList("QUIZ_SERVER_CORS_ORIGINS", []string{"http://localhost:3000"}),
			RequestTimeout: time.Duration(envInt("QUIZ_SERVER_REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:      envStr("QUIZ_DATABASE_URL", ""),
			MaxConns: envInt("QUIZ_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("QUIZ_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			Enabled: envBool("QUIZ_CACHE_ENABLED", false),
			URL:     envStr("QUIZ_CACHE_URL", "redis://localhost:6379"),
			LockTTL: time.Duration(envInt("QUIZ_CACHE_LOCK_TTL_SECONDS", 600)) * time.Second,
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("QUIZ_AI_OPENAI_API_KEY", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("QUIZ_AI_DEEPSEEK_API_KEY", ""),
			},
			Google: GoogleConfig{
				APIKey: envStr("QUIZ_AI_GOOGLE_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("QUIZ_AI_OLLAMA_ENABLED", false),
				URL:     envStr("QUIZ_AI_OLLAMA_URL", "http://localhost:11434"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("QUIZ_AI_OPENROUTER_API_KEY", ""),
			},
			Generation: TaskRoute{
				Provider: envStr("QUIZ_AI_GENERATION_PROVIDER", ""),
				Model:    envStr("QUIZ_AI_GENERATION_MODEL", ""),
			},
			ClearUp: TaskRoute{
				Provider: envStr("QUIZ_AI_CLEARUP_PROVIDER", ""),
				Model:    envStr("QUIZ_AI_CLEARUP_MODEL", ""),
			},
			Grading: TaskRoute{
				Provider: envStr("QUIZ_AI_GRADING_PROVIDER", ""),
				Model:    envStr("QUIZ_AI_GRADING_MODEL", ""),
			},
		},
		Auth: AuthConfig{
			JWTSecret: envStr("QUIZ_AUTH_JWT_SECRET", "change-me-in-production"),
		},
		Credits: CreditsConfig{
			TextPerPage:  envFloat("QUIZ_CREDITS_TEXT_PER_PAGE", 0.5),
			ImagePerPage: envFloat("QUIZ_CREDITS_IMAGE_PER_PAGE", 1.5),
			PerQuestion:  envFloat("QUIZ_CREDITS_PER_QUESTION", 0.1),
			RatesFile:    envStr("QUIZ_CREDITS_RATES_FILE", ""),
		},
		Quiz: QuizConfig{
			MinQuestions:    envInt("QUIZ_LIMITS_MIN_QUESTIONS", 5),
			MaxQuestions:    envInt("QUIZ_LIMITS_MAX_QUESTIONS", 100),
			RoundSize:       envInt("QUIZ_LIMITS_ROUND_SIZE", 20),
			ClearUpSegments: envInt("QUIZ_LIMITS_CLEARUP_SEGMENTS", 10),
			MaxPages:        envInt("QUIZ_LIMITS_MAX_PAGES", 50),
			MinTextChars:    envInt("QUIZ_LIMITS_MIN_TEXT_CHARS", 100),
		},
		Log: LogConfig{
			Level:  envStr("QUIZ_LOG_LEVEL", "info"),
			Format: envStr("QUIZ_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("QUIZ_AUTH_JWT_SECRET is required")
	}

	if c.Credits.TextPerPage < 0 || c.Credits.ImagePerPage < 0 || c.Credits.PerQuestion < 0 {
		return fmt.Errorf("credit rates must not be negative")
	}

	q := c.Quiz
	if q.MinQuestions < 1 || q.MaxQuestions < q.MinQuestions {
		return fmt.Errorf("invalid question bounds %d..%d", q.MinQuestions, q.MaxQuestions)
	}
	if q.RoundSize < 1 || q.RoundSize > MaxRoundSize {
		return fmt.Errorf("QUIZ_LIMITS_ROUND_SIZE must be between 1 and %d, got %d", MaxRoundSize, q.RoundSize)
	}
	if q.ClearUpSegments < 1 {
		return fmt.Errorf("QUIZ_LIMITS_CLEARUP_SEGMENTS must be positive, got %d", q.ClearUpSegments)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("QUIZ_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	for name, route := range map[string]TaskRoute{
		"GENERATION": c.AI.Generation,
		"CLEARUP":    c.AI.ClearUp,
		"GRADING":    c.AI.Grading,
	} {
		if route.Provider != "" && !c.providerConfigured(route.Provider) {
			return fmt.Errorf("QUIZ_AI_%s_PROVIDER %q is not configured", name, route.Provider)
		}
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

func (c *Config) providerConfigured(name string) bool {
	switch name {
	case "google":
		return c.AI.Google.APIKey != ""
	case "openai":
		return c.AI.OpenAI.APIKey != ""
	case "deepseek":
		return c.AI.DeepSeek.APIKey != ""
	case "openrouter":
		return c.AI.OpenRouter.APIKey != ""
	case "ollama":
		return c.AI.Ollama.Enabled
	default:
		return false
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
