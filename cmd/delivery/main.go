package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/tankkwon/delivery-app/internal/amqp"
	"github.com/tankkwon/delivery-app/internal/backend"
	"github.com/tankkwon/delivery-app/internal/cli"
	apphttp "github.com/tankkwon/delivery-app/internal/http"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/metrics"
	"github.com/tankkwon/delivery-app/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg)

	metrics.Init()

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize storage backend",
			log.FieldBackend, backendCfg.Type,
			log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Storage close error", log.FieldError, err)
		}
	}()

	opts := []services.Option{services.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			// Events are optional; the dashboard runs without them.
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithEventPublisher(client))
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	dash := services.NewDashboard(store.Store, opts...)
	dash.Load(ctx)

	writeLimit := cfg.WriteRateLimit
	if writeLimit == 0 {
		writeLimit = -1
	}
	srv := apphttp.NewServer(":"+cfg.Port, dash, apphttp.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WriteLimit:         writeLimit,
		TrustProxy:         cfg.TrustProxy,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting delivery server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, backendCfg.Type,
			log.FieldCount, len(dash.Records()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if store.Watcher != nil {
		g.Go(func() error {
			err := store.Watcher.Watch(gctx, func(key string) {
				logger.Info("Storage changed externally, reloading", log.FieldKey, key)
				dash.Reload(gctx, key)
			})
			if err != nil {
				// The API keeps serving; only cross-process reloads are lost.
				logger.Warn("Storage watcher stopped", log.FieldError, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	waitErr := g.Wait()

	// Deliver queued change events before the AMQP client is closed.
	closeCtx, cancel := cli.ShutdownContext(cfg.ShutdownTimeout)
	if err := dash.Close(closeCtx); err != nil {
		logger.Warn("Pending change events abandoned",
			log.FieldOperation, log.OpShutdown,
			log.FieldError, err)
	}
	cancel()

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		logger.Error("Server error", log.FieldError, waitErr)
		_ = store.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
