// @title Child Development Records API
// @version 1.0
// @description Registros de desarrollo infantil con accesos delegados por token.
// @BasePath /
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"child-development-records/internal/adapters/auth/jwtauth"
	"child-development-records/internal/adapters/auth/odin"
	pg "child-development-records/internal/adapters/storage/postgres"
	"child-development-records/internal/config"
	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/platform/logger"
	"child-development-records/internal/platform/ratelimit"
	"child-development-records/internal/platform/telemetry"
	"child-development-records/internal/ports/auth"
	"child-development-records/internal/router"
)

func main() {
	cfg := config.NewConfig()
	log := logger.NewFromEnv().With(map[string]any{"service": cfg.Telemetry.ServiceName})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Error("telemetry setup failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Error("database connection failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := pg.Migrate(db); err != nil {
				log.Error("migrations failed", map[string]any{"error": err.Error()})
				os.Exit(1)
			}
		}
		log.Info("using postgres storage", nil)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		log.Error("auth setup failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	limiter, err := newTokenLimiter(ctx, cfg)
	if err != nil {
		log.Error("rate limiter setup failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	app := router.New(router.Options{
		AuthVerifier:    verifier,
		DB:              db,
		Logger:          log,
		TokenLimiter:    limiter,
		TokenTTLDays:    cfg.Grants.TokenTTLDays,
		MaxTokenTTLDays: cfg.Grants.MaxTokenTTLDays,
	})

	go accessgrants.NewSweeper(app.Grants, cfg.Grants.SweepInterval, log).Run(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", map[string]any{"addr": cfg.Server.Addr, "auth_mode": string(cfg.Auth.Mode)})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry shutdown failed", map[string]any{"error": err.Error()})
	}
}

// newVerifier devuelve nil en modo dev: AuthContext acepta X-Debug-User-ID.
func newVerifier(cfg config.AuthConfig) (auth.AuthVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeJWT:
		return jwtauth.NewVerifier(jwtauth.Config{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
	case config.AuthModeOdin:
		return odin.NewClient(odin.Config{
			BaseURL: cfg.OdinBaseURL,
			APIKey:  cfg.OdinAPIKey,
			Timeout: cfg.OdinTimeout,
		})
	default:
		return nil, nil
	}
}

func newTokenLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	rule := ratelimit.Rule{Limit: cfg.RateLimit.TokenAttempts, Window: cfg.RateLimit.TokenWindow}
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemory(rule), nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewRedis(client, "cdr:ratelimit", rule), nil
}
