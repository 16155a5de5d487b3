// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tasklist/tasklist/internal/auth"
	authpg "github.com/tasklist/tasklist/internal/auth/postgres"
	"github.com/tasklist/tasklist/internal/config"
	"github.com/tasklist/tasklist/internal/logging"
	"github.com/tasklist/tasklist/internal/notify"
	"github.com/tasklist/tasklist/internal/observability"
	"github.com/tasklist/tasklist/internal/store"
	"github.com/tasklist/tasklist/internal/todo"
	todopg "github.com/tasklist/tasklist/internal/todo/postgres"
	"github.com/tasklist/tasklist/internal/web"
)

const serviceName = "tasklist"

// database is the part of *pgxpool.Pool serve needs.
type database interface {
	store.DBTX
	Ping(ctx context.Context) error
	Close()
}

// serveDeps holds injectable dependencies for the serve command.
// Nil fields use their default implementations.
type serveDeps struct {
	// Getenv reads secrets. Default: os.Getenv
	Getenv func(string) string

	// Connect opens the database. Default: store.Connect
	Connect func(ctx context.Context, databaseURL string, timeout time.Duration) (database, error)

	// MigrateUp applies pending migrations. Default: store.NewMigrator + Up
	MigrateUp func(databaseURL string) error

	// OpenRateLimiter connects the rate-limit backend. Default: Redis
	OpenRateLimiter func(ctx context.Context, url string) (web.RateLimitStore, func() error, error)

	// Ready receives the bound addresses once the listeners are up.
	Ready chan<- serveAddrs
}

// serveAddrs reports the bound listener addresses.
type serveAddrs struct {
	API     string
	Metrics string
}

func (d *serveDeps) setDefaults() {
	if d.Connect == nil {
		d.Connect = func(ctx context.Context, databaseURL string, timeout time.Duration) (database, error) {
			pool, err := store.Connect(ctx, databaseURL, timeout)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MigrateUp == nil {
		d.MigrateUp = func(databaseURL string) (err error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			return m.Up()
		}
	}
	if d.OpenRateLimiter == nil {
		d.OpenRateLimiter = func(ctx context.Context, url string) (web.RateLimitStore, func() error, error) {
			client, err := web.OpenRedis(ctx, url)
			if err != nil {
				return nil, nil, err
			}
			return web.NewRedisRateLimitStore(client), client.Close, nil
		}
	}
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveDeps{})
}

func newServeCmd(deps *serveDeps) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and, unless metrics.addr is empty, the
metrics/health listener. Requires DATABASE_URL and TASKLIST_JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps, autoMigrate)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, deps *serveDeps, autoMigrate bool) error {
	deps.setDefaults()

	cfg, err := loadConfig(cmd, deps.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		//nolint:wrapcheck // config errors carry their own codes
		return err
	}

	logger, err := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		//nolint:wrapcheck // logging errors carry their own codes
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if autoMigrate {
		logger.InfoContext(ctx, "applying migrations")
		if err := deps.MigrateUp(cfg.Secrets.DatabaseURL); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
		}
	}

	db, err := deps.Connect(ctx, cfg.Secrets.DatabaseURL, cfg.Database.ConnectTimeout)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.InfoContext(ctx, "connected to database")

	var limiter web.RateLimitStore
	if cfg.Secrets.RedisURL != "" {
		rl, closeLimiter, err := deps.OpenRateLimiter(ctx, cfg.Secrets.RedisURL)
		if err != nil {
			return oops.Code("RATELIMIT_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
		}
		defer func() {
			if err := closeLimiter(); err != nil {
				logger.Warn("error closing rate limiter", "error", err)
			}
		}()
		limiter = rl
		logger.InfoContext(ctx, "rate limiting enabled", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window)
	}

	metrics := observability.NewMetrics()
	handler, err := newAPIHandler(cfg, db, limiter, metrics, logger)
	if err != nil {
		return err
	}

	api := web.NewServer(web.ServerConfig{Addr: cfg.HTTP.Addr, ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout}, handler, logger)
	apiErrCh, err := api.Start()
	if err != nil {
		//nolint:wrapcheck // web errors carry their own codes
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, metrics, db.Ping, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer shutdownCancel()
			if stopErr := api.Shutdown(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			//nolint:wrapcheck // observability errors carry their own codes
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	if deps.Ready != nil {
		addrs := serveAddrs{API: api.Addr()}
		if obsServer != nil {
			addrs.Metrics = obsServer.Addr()
		}
		deps.Ready <- addrs
	}

	cmd.Println("Tasklist API started on", api.Addr())
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// newAPIHandler wires repositories, services and the router.
func newAPIHandler(cfg *config.Config, db store.DBTX, limiter web.RateLimitStore, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, error) {
	issuer, err := auth.NewJWTIssuer([]byte(cfg.Secrets.JWTSecret), auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		//nolint:wrapcheck // auth errors carry their own codes
		return nil, err
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(
		authpg.NewUserRepository(db),
		auth.NewArgon2idHasher(),
		issuer,
		notifier,
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithResetTTL(cfg.Auth.ResetTTL),
		auth.WithHashConcurrency(cfg.Auth.HashConcurrency),
		auth.WithRecorder(metrics),
		auth.WithLogger(logger),
	)
	if err != nil {
		//nolint:wrapcheck // auth errors carry their own codes
		return nil, err
	}

	guard, err := auth.NewGuard(issuer)
	if err != nil {
		//nolint:wrapcheck // auth errors carry their own codes
		return nil, err
	}

	todoSvc, err := todo.NewService(todopg.NewTodoRepository(db), logger)
	if err != nil {
		//nolint:wrapcheck // todo errors carry their own codes
		return nil, err
	}

	proxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		//nolint:wrapcheck // config errors carry their own codes
		return nil, err
	}

	return web.NewRouter(web.RouterConfig{
		Auth:           authSvc,
		Todos:          todoSvc,
		Guard:          guard,
		Observer:       metrics,
		RateLimitStore: limiter,
		RateLimit: web.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			Block:    cfg.RateLimit.Block,
			Prefix:   "auth",
		},
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TrustedProxies: proxies,
		Logger:         logger,
	}), nil
}

// newNotifier builds the reset-email notifier for the configured driver.
func newNotifier(cfg *config.Config, logger *slog.Logger) (*notify.ResetNotifier, error) {
	var mailer notify.Mailer
	switch cfg.Notify.Driver {
	case config.NotifyDriverSMTP:
		smtpMailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.Notify.From,
			Timeout:  cfg.Notify.SMTPTimeout,
		})
		if err != nil {
			//nolint:wrapcheck // notify errors carry their own codes
			return nil, err
		}
		mailer = smtpMailer
	default:
		mailer = notify.NewLogMailer(logger)
	}

	//nolint:wrapcheck // notify errors carry their own codes
	return notify.NewResetNotifier(mailer, cfg.Notify.ResetURL, cfg.Auth.ResetTTL)
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
