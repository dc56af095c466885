package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPORTSROZ_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.AccessTTL != time.Hour {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 168*time.Hour {
		t.Fatalf("RefreshTTL = %v", cfg.RefreshTTL)
	}
	if cfg.OTPTTL != 10*time.Minute || cfg.OTPResendInterval != 30*time.Second {
		t.Fatalf("OTP timing = %v / %v", cfg.OTPTTL, cfg.OTPResendInterval)
	}
	if cfg.RequireApproval || cfg.TempPasswordOnVerify {
		t.Fatal("feature flags should default off")
	}
	if cfg.JWTIssuer != "sportsroz" {
		t.Fatalf("JWTIssuer = %q", cfg.JWTIssuer)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SPORTSROZ_JWT_SECRET", "test-secret")
	t.Setenv("SPORTSROZ_HTTP_ADDR", ":9090")
	t.Setenv("SPORTSROZ_JWT_ACCESS_TTL", "15m")
	t.Setenv("SPORTSROZ_REQUIRE_APPROVAL", "true")
	t.Setenv("SPORTSROZ_RATE_LIMIT_RPS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.RequireApproval || cfg.RateLimitPerSecond != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SPORTSROZ_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing secret accepted")
	}

	t.Setenv("SPORTSROZ_JWT_SECRET", "test-secret")
	t.Setenv("SPORTSROZ_JWT_ACCESS_TTL", "-1h")
	if _, err := Load(); err == nil {
		t.Fatal("negative TTL accepted")
	}

	t.Setenv("SPORTSROZ_JWT_ACCESS_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("unparseable TTL accepted")
	}
}
