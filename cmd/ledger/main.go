package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/ledger"
	"ledger/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ledger server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.Open(ctx, backendCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	l, err := ledger.New(ctx, res.Store, ledger.WithPublisher(res.Publisher), ledger.WithLogger(logger))
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:             l,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ViewCacheSize:      cfg.ViewCacheSize,
		Ready:              res.Ready,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server", "port", cfg.Port, "backend", cfg.StoreBackend)
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
