package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"image-reader/api/internal/imaging"
	"image-reader/api/internal/relevance"
	"image-reader/api/internal/vision/gemini"
)

var ErrMissingAPIKey = errors.New("missing required env GEMINI_API_KEY")

type Config struct {
	Port string

	GeminiAPIKey string
	GeminiModel  string

	// Denylist is read once at startup and never reloaded.
	Denylist       []string
	MaxUploadBytes int64
	MaxPixels      int

	LogLevel  string
	LogFormat string

	TelegramBotToken string
	WebhookURL       string
}

// fileConfig: необязательный YAML (CONFIG_FILE). Переменные окружения важнее.
type fileConfig struct {
	Port        string   `yaml:"port"`
	Model       string   `yaml:"model"`
	Denylist    []string `yaml:"denylist"`
	MaxUploadMB int      `yaml:"max_upload_mb"`
	MaxPixels   int      `yaml:"max_pixels"`
	LogLevel    string   `yaml:"log_level"`
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load reads the process configuration. The API key is required; the legacy
// variable name KEY is accepted as a fallback.
func Load() (*Config, error) {
	var fc fileConfig
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	key := getEnv("GEMINI_API_KEY", getEnv("KEY", ""))
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &Config{
		Port:             getEnv("PORT", orDefault(fc.Port, "8000")),
		GeminiAPIKey:     key,
		GeminiModel:      getEnv("GEMINI_MODEL", orDefault(fc.Model, gemini.DefaultModel)),
		Denylist:         relevance.DefaultTerms(),
		MaxUploadBytes:   20 << 20,
		MaxPixels:        imaging.DefaultMaxPixels,
		LogLevel:         getEnv("LOG_LEVEL", orDefault(fc.LogLevel, "info")),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
	// пустой список в файле не отключает фильтр
	if len(fc.Denylist) > 0 {
		cfg.Denylist = fc.Denylist
	}
	if fc.MaxPixels > 0 {
		cfg.MaxPixels = fc.MaxPixels
	}

	mb := fc.MaxUploadMB
	if v := getEnv("MAX_UPLOAD_MB", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad MAX_UPLOAD_MB %q", v)
		}
		mb = n
	}
	if mb > 0 {
		cfg.MaxUploadBytes = int64(mb) << 20
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
