// Package config reads process settings from the environment, optionally
// seeded from .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"smartlibrary/internal/auth"
	"smartlibrary/internal/llm"
	"smartlibrary/internal/store"
)

type Config struct {
	Addr     string
	LogLevel string

	Store store.Options
	LLM   llm.Config
	Admin auth.Config

	AIRateLimitRPS   float64
	AIRateLimitBurst int

	// EnableHSTS sends Strict-Transport-Security; TrustProxy keys rate
	// limits by X-Forwarded-For.
	EnableHSTS bool
	TrustProxy bool
}

// LoadEnvFiles reads .env and .env.local without overriding variables that
// are already set.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load builds a Config from the environment.
func Load() (Config, error) {
	LoadEnvFiles()

	cfg := Config{
		Addr:     getEnv("APP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Store: store.Options{
			Driver: strings.ToLower(getEnv("DB_DRIVER", store.DriverSQLite)),
			Path:   getEnv("DB_PATH", "books.db"),
			DSN:    os.Getenv("DB_DSN"),
		},
		Admin: auth.Config{
			Password:     getEnv("ADMIN_PASSWORD", auth.DefaultPassword),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			Secret:       os.Getenv("SESSION_SECRET"),
		},
	}

	var err error
	if cfg.EnableHSTS, err = getBool("ENABLE_HSTS"); err != nil {
		return Config{}, err
	}
	if cfg.TrustProxy, err = getBool("TRUST_PROXY"); err != nil {
		return Config{}, err
	}

	switch cfg.Store.Driver {
	case store.DriverSQLite:
	case store.DriverPostgres:
		if cfg.Store.DSN == "" {
			return Config{}, fmt.Errorf("config: DB_DSN is required when DB_DRIVER=%s", store.DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.Store.Driver)
	}

	llmCfg, err := loadLLM()
	if err != nil {
		return Config{}, err
	}
	cfg.LLM = llmCfg

	if cfg.AIRateLimitRPS, err = getFloat("AI_RATE_LIMIT_RPS", 1); err != nil {
		return Config{}, err
	}
	if cfg.AIRateLimitBurst, err = getInt("AI_RATE_LIMIT_BURST", 5); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadLLM() (llm.Config, error) {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", llm.ProviderGroq))
	c := llm.Config{
		Provider: provider,
		BaseURL:  os.Getenv("LLM_BASE_URL"),
		Model:    os.Getenv("LLM_MODEL"),
	}
	switch provider {
	case llm.ProviderGroq:
		c.APIKey = os.Getenv("GROQ_API_KEY")
		if c.Model == "" {
			c.Model = llm.DefaultGroqModel
		}
	case llm.ProviderOpenAI:
		c.APIKey = getEnv("OPENAI_API_KEY", os.Getenv("GROQ_API_KEY"))
		if c.Model == "" {
			c.Model = llm.DefaultGroqModel
		}
	case llm.ProviderGemini:
		c.APIKey = os.Getenv("GEMINI_API_KEY")
		if c.Model == "" {
			c.Model = llm.DefaultGeminiModel
		}
	default:
		return llm.Config{}, fmt.Errorf("config: unsupported LLM_PROVIDER %q", provider)
	}

	timeout, err := time.ParseDuration(getEnv("LLM_TIMEOUT", "60s"))
	if err != nil || timeout <= 0 {
		return llm.Config{}, fmt.Errorf("config: invalid LLM_TIMEOUT %q", os.Getenv("LLM_TIMEOUT"))
	}
	c.Timeout = timeout
	return c, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return f, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return n, nil
}

func getBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return b, nil
}
