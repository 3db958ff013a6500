// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"datahub-storefront/internal/domain/model"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PublicBaseURL  string        `yaml:"public_base_url"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`      // wizard state lifetime
	CartTTL  time.Duration `yaml:"cart_ttl"` // cart lifetime
}

type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	CookieDomain string        `yaml:"cookie_domain"`
	SecureCookie bool          `yaml:"secure_cookie"`
	TTL          time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type PaystackConfig struct {
	PublicKey       string        `yaml:"public_key"`
	SecretKey       string        `yaml:"secret_key"`
	BaseURL         string        `yaml:"base_url"`
	InlineScriptURL string        `yaml:"inline_script_url"`
	StoreEmail      string        `yaml:"store_email"`
	Currency        string        `yaml:"currency"`
	Timeout         time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	Provider string         `yaml:"provider"` // paystack | noop
	Paystack PaystackConfig `yaml:"paystack"`
}

type RegistrationConfig struct {
	Provider string        `yaml:"provider"` // http | memory
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`

	// CheckLimit status checks per session per CheckWindow.
	CheckLimit  int           `yaml:"check_limit"`
	CheckWindow time.Duration `yaml:"check_window"`
}

type AFAConfig struct {
	FeeMajor      int64  `yaml:"fee_major"`
	PackagesRoute string `yaml:"packages_route"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	Workers           int           `yaml:"workers"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Admin        AdminConfig        `yaml:"admin"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Session      SessionConfig      `yaml:"session"`
	Security     SecurityConfig     `yaml:"security"`
	Payment      PaymentConfig      `yaml:"payment"`
	Registration RegistrationConfig `yaml:"registration"`
	AFA          AFAConfig          `yaml:"afa"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Catalog      []model.Product    `yaml:"catalog"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and defaults,
// and validates what the service cannot start without.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Payment.Paystack.PublicKey, "PAYSTACK_PUBLIC_KEY")
	override(&cfg.Payment.Paystack.SecretKey, "PAYSTACK_SECRET_KEY")
	override(&cfg.Session.Secret, "SESSION_SECRET")
	override(&cfg.Security.EncryptionKey, "ENCRYPTION_KEY")
	override(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	override(&cfg.Registration.Token, "REGISTRATION_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
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
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 15*time.Minute)
	cfg.Redis.CartTTL = normalizeTTL(cfg.Redis.CartTTL, 7*24*time.Hour)
	cfg.Session.TTL = normalizeTTL(cfg.Session.TTL, 30*24*time.Hour)

	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "paystack"
	}
	ps := &cfg.Payment.Paystack
	if ps.BaseURL == "" {
		ps.BaseURL = "https://api.paystack.co"
	}
	if ps.InlineScriptURL == "" {
		ps.InlineScriptURL = "https://js.paystack.co/v1/inline.js"
	}
	if ps.StoreEmail == "" {
		ps.StoreEmail = "receipt@geniusdatahub.com"
	}
	if ps.Currency == "" {
		ps.Currency = "GHS"
	}
	ps.Timeout = normalizeTTL(ps.Timeout, 15*time.Second)

	if cfg.Registration.Provider == "" {
		cfg.Registration.Provider = "http"
	}
	cfg.Registration.Timeout = normalizeTTL(cfg.Registration.Timeout, 10*time.Second)
	if cfg.Registration.CheckLimit <= 0 {
		cfg.Registration.CheckLimit = 10
	}
	cfg.Registration.CheckWindow = normalizeTTL(cfg.Registration.CheckWindow, time.Minute)

	if cfg.AFA.FeeMajor <= 0 {
		cfg.AFA.FeeMajor = 20
	}
	if cfg.AFA.PackagesRoute == "" {
		cfg.AFA.PackagesRoute = "/bundles/afa"
	}

	cfg.Scheduler.ReconcileInterval = normalizeTTL(cfg.Scheduler.ReconcileInterval, time.Minute)
	cfg.Scheduler.StaleAfter = normalizeTTL(cfg.Scheduler.StaleAfter, 30*time.Minute)
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}

	for i := range cfg.Catalog {
		if cfg.Catalog[i].Currency == "" {
			cfg.Catalog[i].Currency = ps.Currency
		}
	}
}

func (cfg *Config) validate() error {
	// Minimal validation
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Session.Secret == "" && !cfg.Runtime.Dev {
		return errors.New("session.secret is required")
	}
	switch cfg.Registration.Provider {
	case "http":
		if cfg.Registration.BaseURL == "" {
			return errors.New("registration.base_url is required for the http provider")
		}
	case "memory":
	default:
		return fmt.Errorf("registration.provider %q is not supported", cfg.Registration.Provider)
	}
	switch cfg.Payment.Provider {
	case "paystack", "noop":
	default:
		return fmt.Errorf("payment.provider %q is not supported", cfg.Payment.Provider)
	}
	seen := make(map[string]bool, len(cfg.Catalog))
	for _, p := range cfg.Catalog {
		if p.ID == "" || p.PriceMinor <= 0 {
			return fmt.Errorf("catalog entry %q needs an id and a positive price_minor", p.Name)
		}
		if seen[p.ID] {
			return fmt.Errorf("catalog id %q is duplicated", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
