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

	"github.com/okian/gigbook/internal/adapters/http/api"
	"github.com/okian/gigbook/internal/adapters/http/swagger"
	app "github.com/okian/gigbook/internal/app"
	"github.com/okian/gigbook/internal/config"
	"github.com/okian/gigbook/pkg/logger"
)

// HTTP server timeout constants. There is no write timeout because
// subscriptions hold their connection open.
const (
	readTimeout          = 10 * time.Second
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 30 * time.Second
	serviceStatsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "gigbook exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional YAML file -> .env -> environment
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn(ctx, "using the development JWT secret; set GIGBOOK_JWT_SECRET in production")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStoreDriver(cfg.StoreDriver),
		app.WithPostgresDSN(cfg.PostgresDSN),
		app.WithRedisAddr(cfg.RedisAddr),
		app.WithAMQPURL(cfg.AMQPURL),
		app.WithWorkerCount(cfg.RefetchWorkers),
		app.WithQueueSize(cfg.RefetchQueueSize),
		app.WithRefetchDelay(cfg.RefetchDelay()),
		app.WithWriteTimeout(cfg.WriteTimeout()),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	go startServiceStatsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.NewAuthenticator(cfg.JWTSecret)).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startServiceStatsUpdater refreshes the service gauges until ctx ends.
func startServiceStatsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := svc.GetStats()
			logger.Get().Debug(ctx, "service stats",
				logger.Any("cached_venues", stats["cachedVenues"]),
				logger.Any("subscribers", stats["subscribers"]),
				logger.Any("queue_length", stats["queueLength"]))
		}
	}
}
