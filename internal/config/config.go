package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Chat      ChatConfig
	LLM       LLMConfig
	Digest    DigestConfig
	Timeouts  TimeoutConfig
	SMTP      SMTPConfig
	Pipelines []PipelineConfig `validate:"dive"`
}

type AppConfig struct {
	Port        string `validate:"required,numeric"`
	Environment string
	LogFilePath string
	NatsURL     string
	RedisURL    string
	DatabaseURL string
	JWTSecret   string
	CorsOrigins string
}

type ChatConfig struct {
	Enabled          bool
	AllowedChannelID string
	MaxTurns         int    `validate:"min=1,max=100"`
	ResetCommand     string `validate:"required"`
	MaxOutputTokens  int    `validate:"min=1"`
}

type LLMConfig struct {
	Provider      string `validate:"oneof=anthropic ollama"`
	Model         string `validate:"required"`
	APIKey        string
	BaseURL       string
	OllamaBaseURL string
}

type DigestConfig struct {
	WebhookURL         string `validate:"omitempty,url"`
	IntervalMinutes    int    `validate:"min=0"`
	Cron               string
	Timezone           string
	RunOnBoot          bool
	ResearchEnabled    bool
	FeedURLs           []string `validate:"dive,url"`
	ItemLimit          int      `validate:"min=1"`
	MaxOutputTokens    int      `validate:"min=1"`
	DeliveryRetries    int      `validate:"min=0,max=5"`
	TransportCharLimit int      `validate:"min=1800,max=1900"`
	PipelinesFile      string
}

type TimeoutConfig struct {
	Feed     time.Duration `validate:"gt=0"`
	LLM      time.Duration `validate:"gt=0"`
	Delivery time.Duration `validate:"gt=0"`
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

// Load reads .env (if any) and the process environment, adds the pipeline
// definitions and validates the result. Any error is a
// *apperror.ConfigurationError and must stop startup.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := FromEnv()

	pipelines, err := buildPipelines(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Pipelines = pipelines

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv maps environment variables onto a Config without validating it.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "3000"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "logs/digestbot.log"),
			NatsURL:     getEnv("NATS_URL", ""),
			RedisURL:    getEnv("REDIS_URL", ""),
			DatabaseURL: getEnv("DB_CONNECTION_STRING", ""),
			JWTSecret:   getEnv("JWT_SECRET", ""),
			CorsOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Chat: ChatConfig{
			Enabled:          getEnvAsBool("CHAT_ENABLED", true),
			AllowedChannelID: getEnv("CHAT_ALLOWED_CHANNEL_ID", ""),
			MaxTurns:         getEnvAsInt("CHAT_HISTORY_MAX_TURNS", 10),
			ResetCommand:     getEnv("CHAT_RESET_COMMAND", "reset"),
			MaxOutputTokens:  getEnvAsInt("LLM_MAX_OUTPUT_TOKENS", 400),
		},
		LLM: LLMConfig{
			Provider:      getEnv("LLM_PROVIDER", "anthropic"),
			Model:         getEnv("LLM_MODEL", "claude-3-haiku-20240307"),
			APIKey:        getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:       getEnv("ANTHROPIC_BASE_URL", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Digest: DigestConfig{
			WebhookURL:         getEnv("DIGEST_WEBHOOK_URL", ""),
			IntervalMinutes:    getEnvAsInt("WORKER_INTERVAL_MINUTES", 30),
			Cron:               getEnv("DIGEST_CRON", ""),
			Timezone:           getEnv("DIGEST_TIMEZONE", "UTC"),
			RunOnBoot:          getEnvAsBool("DIGEST_RUN_ON_BOOT", true),
			ResearchEnabled:    getEnvAsBool("DIGEST_RESEARCH_ENABLED", true),
			FeedURLs:           getEnvAsList("DIGEST_FEED_URLS"),
			ItemLimit:          getEnvAsInt("DIGEST_ITEM_LIMIT", 10),
			MaxOutputTokens:    getEnvAsInt("DIGEST_MAX_OUTPUT_TOKENS", 500),
			DeliveryRetries:    getEnvAsInt("DIGEST_DELIVERY_RETRIES", 0),
			TransportCharLimit: getEnvAsInt("TRANSPORT_CHAR_LIMIT", 1900),
			PipelinesFile:      getEnv("PIPELINES_FILE", ""),
		},
		Timeouts: TimeoutConfig{
			Feed:     time.Duration(getEnvAsInt("FEED_TIMEOUT_SECONDS", 15)) * time.Second,
			LLM:      time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			Delivery: time.Duration(getEnvAsInt("DELIVERY_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Digest Bot"),
		},
	}
}

// IsProduction reports whether GO_ENV selects production logging.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// getEnv treats a blank value like an unset one, so `KEY=` in .env keeps
// the default.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strings.TrimSpace(strValue)); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strings.TrimSpace(strValue)); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
