package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eggmanager/internal/api"
	"eggmanager/internal/app"
	"eggmanager/internal/bot"
	"eggmanager/internal/config"
	"eggmanager/internal/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eggmanager: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("resolving config directory: %w", err)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting eggmanager daemon",
		zap.String("config_dir", configDir),
		zap.String("database", cfg.Database.Path),
		zap.Bool("discord", cfg.Discord.Enabled),
	)

	container, err := app.NewContainer(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.NewAPIServer(container).Start(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	})
	if cfg.Discord.Enabled {
		g.Go(func() error {
			return bot.New(container.Control, log).Run(ctx, cfg.Discord.Token)
		})
	}

	err = g.Wait()
	log.Info("eggmanager daemon stopped")
	return err
}
