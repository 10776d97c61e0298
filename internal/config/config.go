package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// SMTPConfig holds outbound mail settings. Mail is disabled when Host is empty.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// Enabled reports whether enough settings exist to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Config keeps runtime settings for the service.
type Config struct {
	HTTPAddr           string        `toml:"http_addr"`
	DatabaseURL        string        `toml:"database_url"`
	LogLevel           string        `toml:"log_level"`
	FrontendURL        string        `toml:"frontend_url"`
	JWTSecret          string        `toml:"jwt_secret"`
	AccessTokenTTL     time.Duration `toml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `toml:"refresh_token_ttl"`
	RefreshedAccessTTL time.Duration `toml:"refreshed_access_ttl"`
	VerificationTTL    time.Duration `toml:"verification_ttl"`
	NotifyTimeout      time.Duration `toml:"notify_timeout"`
	DigestAt           string        `toml:"digest_at"`
	TokenPurgeInterval time.Duration `toml:"token_purge_interval"`
	TelegramToken      string        `toml:"telegram_token"`
	NATSURL            string        `toml:"nats_url"`
	SMTP               SMTPConfig    `toml:"smtp"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTPAddr:           ":5000",
		DatabaseURL:        "uptrack.db",
		LogLevel:           "info",
		FrontendURL:        "https://uptrack-phi.vercel.app",
		AccessTokenTTL:     7 * 24 * time.Hour,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		RefreshedAccessTTL: 7 * time.Hour,
		VerificationTTL:    time.Hour,
		NotifyTimeout:      10 * time.Second,
		DigestAt:           "08:00",
		TokenPurgeInterval: time.Hour,
		SMTP:               SMTPConfig{Port: 587},
	}
}

// Load reads an optional TOML file and then environment variables, which win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("notify timeout must be positive")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.RefreshedAccessTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	if port := env("PORT"); port != "" && env("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + port
	}
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.FrontendURL, "FRONTEND_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.DigestAt, "DIGEST_AT")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.NATSURL, "NATS_URL")

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Username, "EMAIL_USER")
	setString(&cfg.SMTP.Password, "EMAIL_PASS")
	setString(&cfg.SMTP.From, "EMAIL_FROM")
	if cfg.SMTP.Host == "" && cfg.SMTP.Username != "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if raw := env("SMTP_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid SMTP_PORT %q", raw)
		}
		cfg.SMTP.Port = port
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", &cfg.RefreshTokenTTL},
		{"REFRESHED_ACCESS_TTL", &cfg.RefreshedAccessTTL},
		{"VERIFICATION_TTL", &cfg.VerificationTTL},
		{"NOTIFY_TIMEOUT", &cfg.NotifyTimeout},
		{"TOKEN_PURGE_INTERVAL", &cfg.TokenPurgeInterval},
	}
	for _, d := range durations {
		raw := env(d.key)
		if raw == "" {
			continue
		}
		parsed, err := parseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

// parseDuration accepts Go durations ("90m") and bare hour counts ("5").
func parseDuration(raw string) (time.Duration, error) {
	if hours, err := strconv.Atoi(raw); err == nil {
		if hours < 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(hours) * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}
