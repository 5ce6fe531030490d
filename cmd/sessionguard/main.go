package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sessionguard/internal/config"
	"sessionguard/internal/observability/logging"
	"sessionguard/internal/observability/metrics"
	"sessionguard/internal/observability/middleware"
	"sessionguard/internal/service/impl"
	"sessionguard/internal/store"
	httpx "sessionguard/internal/transport/http"
	"sessionguard/pkg/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	logger := logging.NewLogger(logging.Config{
		ServiceName: "sessionguard",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	logger.Info("starting service")

	cfg := config.Load()

	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)

	metrics.MustRegister("sessionguard")

	audit := impl.NewAuditServiceImpl(st, impl.AuditConfig{
		Retention:           cfg.EventRetention,
		BruteForceThreshold: cfg.BruteForceThreshold,
		BruteForceWindow:    cfg.BruteForceWindow,
	})
	mfa := impl.NewMFAServiceImpl(st, audit, impl.LogSMSGateway{}, impl.LogEmailGateway{}, impl.MFAConfigOpts{
		Issuer:          cfg.Issuer,
		SMSCodeTTL:      cfg.SMSCodeTTL,
		EmailCodeTTL:    cfg.EmailCodeTTL,
		CodeMaxAttempts: cfg.CodeMaxAttempts,
	})
	sessions := impl.NewSessionServiceImpl(st, audit)
	policies := impl.NewPolicyServiceImpl(st, audit)
	tokens := impl.NewTokenServiceImpl(impl.TokenConfig{
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		SigningKey: []byte(cfg.SigningKey),
	}, sessions)

	// Background sweep keeps stale sessions from lingering as "active" when
	// nothing validates them.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			expired, err := sessions.Sweep(ctx)
			cancel()
			if err != nil {
				slog.Error("session sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				slog.Info("session sweep", "expired", expired)
			}
		}
	}()

	router := httpx.NewRouter(mfa, sessions, policies, audit, tokens, cfg.TrustProxy)
	handler := middleware.WithRequestAndTrace(middleware.WithMetrics(router))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("sessionguard listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
