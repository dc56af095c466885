package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/config"
	"sportsroz.org/internal/httpapi"
	"sportsroz.org/internal/mail"
	"sportsroz.org/internal/obs"
	"sportsroz.org/internal/store/memory"
	"sportsroz.org/internal/store/pg"
)

// version is stamped at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		obs.Error("config load failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	var (
		store auth.Store
		probe httpapi.ReadyProbe
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			obs.Error("postgres open failed", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		obs.Info("no postgres DSN configured, using in-memory store", nil)
		store = memory.New()
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer,
		auth.WithAccessTokenTTL(cfg.AccessTTL),
		auth.WithRefreshTokenTTL(cfg.RefreshTTL),
	)
	if err != nil {
		obs.Error("token service init failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	authSvc, err := auth.NewService(store, tokens, mail.NewLogSender(),
		auth.WithOTPTTL(cfg.OTPTTL),
		auth.WithOTPResendInterval(cfg.OTPResendInterval),
		auth.WithRequireApproval(cfg.RequireApproval),
		auth.WithTempPasswordOnVerify(cfg.TempPasswordOnVerify),
	)
	if err != nil {
		obs.Error("auth service init failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	rbacSvc, err := auth.NewRBACService(store)
	if err != nil {
		obs.Error("rbac service init failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	ctx := context.Background()
	if err := authSvc.EnsureBuiltins(ctx); err != nil {
		obs.Error("builtin permission seed failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	api := httpapi.New(authSvc, rbacSvc, probe, version, httpapi.Options{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obs.Info("listening", map[string]any{"addr": cfg.Addr, "env": cfg.Environment, "version": version})
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Error("server error", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	case sig := <-stop:
		obs.Info("shutting down", map[string]any{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			obs.Error("shutdown error", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}
}
