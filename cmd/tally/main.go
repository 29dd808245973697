package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/auth"
	"tally/internal/backend"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/config"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/stats"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to close storage backend", log.FieldError, err)
			}
		}()
	}

	caches := cache.NewManager(logger)
	statsSvc := stats.NewService(res.Store, stats.Config{
		CacheSize: cfg.StatsCacheSize,
		CacheTTL:  cfg.StatsCacheTTL,
		Location:  cfg.Location(),
	}, logger)
	statsSvc.Register(caches)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	// Events are optional: without a broker the mirror simply is not fed.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		broker, err := amqp.NewClient(ctx, amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
		}, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", log.FieldError, err)
			os.Exit(1)
		}
		defer broker.Close()
		publisher = broker
	} else {
		logger.Info("AMQP disabled - expense events will not be published")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Expenses:           services.NewExpenseService(res.Store, statsSvc, publisher, logger),
		Stats:              statsSvc,
		Verifier:           auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer),
		Ready:              res.Store,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting tally server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}

// openStore builds the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).Create(ctx, bcfg)
}
