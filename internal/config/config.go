package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string
	GeminiModel   string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	SessionIdleTTL     time.Duration
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
	GeminiBaseURL      string
	GeminiAPIVersion   string

	WebAddr           string
	MaxUploadBytes    int64
	CORSAllowedOrigin string
}

// Load reads the environment. A missing Gemini key is not an error: the
// generation client reports it as a permission failure on use. An empty
// GeminiModel leaves the choice to the gemini package default.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		SessionIdleTTL:     time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 24*60)) * time.Minute,
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiModel:        getEnv("GEMINI_MODEL", ""),
		GeminiBaseURL:      strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion:   strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		WebAddr:            getEnv("WEB_ADDR", ":8080"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		CORSAllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "*"),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", strings.TrimSpace(os.Getenv("API_KEY")))

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.SessionIdleTTL <= 0 {
		cfg.SessionIdleTTL = 24 * time.Hour
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}

	return cfg, nil
}

// ValidateBot checks what only the Telegram front end needs.
func (c Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
