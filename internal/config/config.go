package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"telegram_booking_bot/pkg/errors"
)

// Режимы получения обновлений
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Бэкенды хранения сессий
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Session   SessionConfig   `json:"session"`
	Redis     RedisConfig     `json:"redis"`
	Bot       BotConfig       `json:"bot"`
	Log       LogConfig       `json:"log"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	Token         string `json:"token"`
	Mode          string `json:"mode"`
	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"-"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SessionConfig содержит настройки хранения диалогов
type SessionConfig struct {
	Backend       string        `json:"backend"`
	Timeout       time.Duration `json:"timeout"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// BotConfig содержит прикладные настройки бота
type BotConfig struct {
	AdminIDs     []int64 `json:"admin_ids"`
	ContactsText string  `json:"contacts_text"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// RateLimitConfig содержит настройки ограничения запросов к webhook
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

// Load загружает конфигурацию из .env файла и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not loaded: %v", err)
	}

	adminIDs, err := parseIDList(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:         os.Getenv("TELEGRAM_TOKEN"),
			Mode:          strings.ToLower(getEnv("TELEGRAM_MODE", ModePolling)),
			WebhookURL:    os.Getenv("WEBHOOK_URL"),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_FILE", "booking.db"),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
			Timeout:       getEnvAsDuration("SESSION_TIMEOUT", 30*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Bot: BotConfig{
			AdminIDs:     adminIDs,
			ContactsText: getEnv("CONTACTS_TEXT", "Свяжитесь с нами через этого бота."),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 600),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return invalid("TELEGRAM_TOKEN is required")
	}

	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return invalid("WEBHOOK_URL is required in webhook mode")
		}
	default:
		return invalid("TELEGRAM_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.Telegram.Mode)
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			return invalid("REDIS_ADDR is required for redis session backend")
		}
	default:
		return invalid("SESSION_BACKEND must be %q or %q, got %q", SessionBackendMemory, SessionBackendRedis, c.Session.Backend)
	}

	if c.Session.Timeout <= 0 {
		return invalid("SESSION_TIMEOUT must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return invalid("RATE_LIMIT_RPM must be positive")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.ErrConfigurationInvalid.WithError(fmt.Errorf(format, args...))
}

// IsAdmin проверяет, входит ли пользователь в список администраторов
func (c *BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// parseIDList разбирает список идентификаторов через запятую
func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
