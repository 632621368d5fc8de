// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // per-request ctx deadline, must exceed compute.timeout
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type BotConfig struct {
	Token         string        `yaml:"token"`
	Username      string        `yaml:"username"`
	APIEndpoint   string        `yaml:"api_endpoint"`   // tgbotapi endpoint format, empty = api.telegram.org
	WebhookSecret string        `yaml:"webhook_secret"` // X-Telegram-Bot-Api-Secret-Token, empty = not checked
	Timeout       time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	MaxAge time.Duration `yaml:"max_age"` // 0 disables the auth_date freshness check
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // host:port, empty selects the in-process rate limiter
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ComputeConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Mode       string        `yaml:"mode"` // ledger | passthrough
}

type PaymentConfig struct {
	TestMode       bool   `yaml:"test_mode"`
	InvoiceTitle   string `yaml:"invoice_title"`
	InvoiceDesc    string `yaml:"invoice_description"`
	WelcomeCredits int    `yaml:"welcome_credits"`
	ReferralBonus  int    `yaml:"referral_bonus"`
}

type RateLimitConfig struct {
	Window        time.Duration `yaml:"window"`
	Consume       int           `yaml:"consume"`
	Balance       int           `yaml:"balance"`
	Invoice       int           `yaml:"invoice"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type SchedulerConfig struct {
	FailedPaymentsCron string `yaml:"failed_payments_cron"`
}

type WorkersConfig struct {
	Webhook int `yaml:"webhook"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bot       BotConfig       `yaml:"bot"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Compute   ComputeConfig   `yaml:"compute"`
	Payment   PaymentConfig   `yaml:"payment"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Workers   WorkersConfig   `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	ComputeModeLedger      = "ledger"
	ComputeModePassthrough = "passthrough"
)

// LoadConfig reads the YAML file at path (a missing file is not an error),
// applies .env and environment overrides, then fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	switch cfg.Compute.Mode {
	case ComputeModeLedger, ComputeModePassthrough:
	default:
		return nil, fmt.Errorf("compute.mode must be %q or %q, got %q", ComputeModeLedger, ComputeModePassthrough, cfg.Compute.Mode)
	}
	if cfg.Server.RequestTimeout <= cfg.Compute.Timeout {
		return nil, errors.New("server.request_timeout must exceed compute.timeout")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Bot.Token, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Bot.Username, "TELEGRAM_BOT_USERNAME")
	setString(&cfg.Bot.WebhookSecret, "TELEGRAM_WEBHOOK_SECRET")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Compute.WebhookURL, "MAKE_WEBHOOK_URL")
	setString(&cfg.Compute.Mode, "CONSUME_MODE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")

	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("TEST_MODE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TEST_MODE: %w", err)
		}
		cfg.Payment.TestMode = b
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Compute.Timeout <= 0 {
		cfg.Compute.Timeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = cfg.Compute.Timeout + 15*time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = cfg.Server.RequestTimeout + 5*time.Second
	}
	if cfg.Bot.Timeout <= 0 {
		cfg.Bot.Timeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Compute.Mode = strings.ToLower(strings.TrimSpace(cfg.Compute.Mode))
	if cfg.Compute.Mode == "" {
		cfg.Compute.Mode = ComputeModeLedger
	}
	if cfg.Payment.InvoiceTitle == "" {
		cfg.Payment.InvoiceTitle = "AI image credits"
	}
	if cfg.Payment.InvoiceDesc == "" {
		cfg.Payment.InvoiceDesc = "Buy %d credits for AI image generation"
	}
	if cfg.Payment.WelcomeCredits <= 0 {
		cfg.Payment.WelcomeCredits = 3
	}
	if cfg.Payment.ReferralBonus <= 0 {
		cfg.Payment.ReferralBonus = 1
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.Consume <= 0 {
		cfg.RateLimit.Consume = 5
	}
	if cfg.RateLimit.Balance <= 0 {
		cfg.RateLimit.Balance = 20
	}
	if cfg.RateLimit.Invoice <= 0 {
		cfg.RateLimit.Invoice = 10
	}
	if cfg.RateLimit.SweepInterval <= 0 {
		cfg.RateLimit.SweepInterval = 5 * time.Minute
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Scheduler.FailedPaymentsCron == "" {
		cfg.Scheduler.FailedPaymentsCron = "@every 10m"
	}
	if cfg.Workers.Webhook <= 0 {
		cfg.Workers.Webhook = 4
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
