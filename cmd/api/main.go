// @title        E-commerce Auth API
// @version      1.0
// @description  Registration, login and refresh-token sessions for the e-commerce API.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in           header
// @name         Authorization
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecommerce-app/ecommerce-api/internal/api"
	"github.com/ecommerce-app/ecommerce-api/internal/api/handler"
	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
	"github.com/ecommerce-app/ecommerce-api/internal/core/service"
	"github.com/ecommerce-app/ecommerce-api/internal/infrastructure/db/redis"
	"github.com/ecommerce-app/ecommerce-api/internal/infrastructure/queue"
	"github.com/ecommerce-app/ecommerce-api/internal/pkg/config"
	"github.com/ecommerce-app/ecommerce-api/internal/pkg/password"
	"github.com/ecommerce-app/ecommerce-api/internal/pkg/token"
	"github.com/ecommerce-app/ecommerce-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context) error {
	// 1. Configuration and logging.
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "ecommerce-api",
	})

	// 2. Storage.
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	checks := map[string]handler.Checker{st.name: st.ping}

	// 3. Replay guard (optional).
	var replay ports.ReplayGuard
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		replay = redis.NewReplayGuard(rdb, cfg.Session.RefreshTTL)
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, rdb) }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("refresh replay guard enabled")
	}

	// 4. Audit dispatcher.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, st.audit, logger.Component("audit"))
	dispatcher.Start(workerCtx)
	defer dispatcher.Close()

	// 5. Security primitives and the auth service.
	tokens, err := token.NewManager(token.Config{
		Secret:    []byte(cfg.JWT.Secret),
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		AccessTTL: cfg.JWT.AccessTTL,
	})
	if err != nil {
		return err
	}

	authService := service.NewAuthService(service.AuthDeps{
		Users:      st.users,
		Sessions:   st.sessions,
		Hasher:     password.NewBcrypt(cfg.Session.BcryptCost),
		Tokens:     tokens,
		Replay:     replay,
		Audit:      dispatcher,
		RefreshTTL: cfg.Session.RefreshTTL,
		Log:        logger.Component("auth"),
	})

	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return err
		}
		log.Info().Str("email", cfg.Admin.Email).Msg("admin account ensured")
	}

	// 6. HTTP server.
	e := api.NewRouter(api.RouterDeps{
		Auth:   authService,
		Tokens: tokens,
		Checks: checks,
		Log:    logger.Component("http"),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 7. Wait for a signal, then drain.
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

