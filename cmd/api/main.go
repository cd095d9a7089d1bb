package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"xianyu-autosell/config"
	"xianyu-autosell/internal/app"
	"xianyu-autosell/internal/server"
	"xianyu-autosell/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppEnv == logger.ProductionMode {
		mode = logger.ProductionMode
	}
	log := logger.New(mode)
	logger.SetGlobalLogger(log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Errorf("Failed to initialise: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := server.New(cfg, log)
	srv.SetupRoutes(a.Handlers(), a.HealthChecks(), a.Limiter)

	a.Worker.Start()
	defer a.Worker.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})
	if a.Bridge != nil {
		g.Go(func() error {
			if err := a.Bridge.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Service stopped with error: %v", err)
		os.Exit(1)
	}
	log.Infof("Service stopped")
}
