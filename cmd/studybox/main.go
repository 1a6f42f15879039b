package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/samuvale95/swift-study-box-be/internal/app"
	"github.com/samuvale95/swift-study-box-be/internal/config"
	httpx "github.com/samuvale95/swift-study-box-be/internal/http"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
)

func main() {
	// A missing .env is fine; the environment may be set by the platform.
	_ = godotenv.Load()

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}

	var configPath string

	root := &cobra.Command{
		Use:          "studybox",
		Short:        "StudyBox backend service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to the YAML config (env CONFIG_PATH)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       os.Getenv("LOG_LEVEL"),
				ServiceName: "studybox",
			})
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			container, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			srv := httpx.NewServer(container.Addr, container.Handler)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("http server listening", logger.Component("server"))
				return srv.Start()
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Info("shutting down", logger.Component("server"))
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				log.Error("server stopped", logger.Err(err))
				return err
			}
			return nil
		},
	}
}
