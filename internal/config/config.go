// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the service reads at startup.
type Config struct {
	Addr        string `env:"SPORTSROZ_HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"SPORTSROZ_PG_DSN"`

	JWTSecret  string        `env:"SPORTSROZ_JWT_SECRET"`
	JWTIssuer  string        `env:"SPORTSROZ_JWT_ISSUER" envDefault:"sportsroz"`
	AccessTTL  time.Duration `env:"SPORTSROZ_JWT_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"SPORTSROZ_JWT_REFRESH_TTL" envDefault:"168h"`

	OTPTTL            time.Duration `env:"SPORTSROZ_OTP_TTL" envDefault:"10m"`
	OTPResendInterval time.Duration `env:"SPORTSROZ_OTP_RESEND_INTERVAL" envDefault:"30s"`

	RequireApproval      bool `env:"SPORTSROZ_REQUIRE_APPROVAL" envDefault:"false"`
	TempPasswordOnVerify bool `env:"SPORTSROZ_TEMP_PASSWORD_ON_VERIFY" envDefault:"false"`

	RateLimitPerSecond int `env:"SPORTSROZ_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int `env:"SPORTSROZ_RATE_LIMIT_BURST" envDefault:"40"`

	Environment string `env:"SPORTSROZ_ENV" envDefault:"development"`
}

// Load parses configuration from the environment and validates required values.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("SPORTSROZ_JWT_SECRET is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return Config{}, errors.New("token TTLs must be positive")
	}
	if cfg.OTPTTL <= 0 {
		return Config{}, errors.New("OTP TTL must be positive")
	}
	return cfg, nil
}
