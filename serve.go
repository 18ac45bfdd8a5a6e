package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"language-toolkit/internal/api"
	"language-toolkit/internal/config"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/tasks"
	"language-toolkit/internal/translation"
	"language-toolkit/models"
	"language-toolkit/services"
)

func newServeCmd(getConfig func() *models.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if addr != "" {
				cfg.ServerAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config, "+config.DefaultServerAddr+")")
	return cmd
}

func runServer(ctx context.Context, cfg *models.Config) error {
	table := translation.DefaultTable()
	if cfg.LanguageTablePath != "" {
		loaded, err := translation.LoadTable(cfg.LanguageTablePath)
		if err != nil {
			return fmt.Errorf("load language table: %w", err)
		}
		table = loaded
		logger.Info("Loaded language table from %s", cfg.LanguageTablePath)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	metrics := tasks.NewMetrics(prometheus.DefaultRegisterer)
	registry := tasks.NewRegistry()
	scheduler := tasks.NewScheduler(registry, tasks.Options{
		TaskTimeout: time.Duration(cfg.TaskTimeout),
		WorkRoot:    cfg.WorkDir,
		Metrics:     metrics,
	})

	toolkit := services.NewToolkitFromConfig(cfg, table, metrics)
	toolkit.Register(scheduler)
	if err := services.NewConverter(cfg.ConverterPath).CheckInstalled(ctx); err != nil {
		logger.Warn("Document conversion unavailable: %v", err)
	}
	if err := services.NewFFmpeg(cfg.FFmpegPath).CheckInstalled(ctx); err != nil {
		logger.Warn("Audio over the upload limit cannot be compressed: %v", err)
	}

	if retention := time.Duration(cfg.TaskRetention); retention > 0 {
		go scheduler.RunJanitor(ctx, config.DefaultJanitorInterval, retention)
	} else {
		logger.Info("Task retention is 0: finished tasks are kept until deleted")
	}

	var gatherer prometheus.Gatherer
	if cfg.MetricsRoute {
		gatherer = prometheus.DefaultGatherer
	}
	srv := api.NewServer(scheduler, tasks.NewQuery(registry), toolkit.Translation().Router(), api.Options{
		Addr:           cfg.ServerAddr,
		Token:          cfg.APIToken,
		WorkRoot:       cfg.WorkDir,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Gatherer:       gatherer,
	})

	serveErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Scheduler shutdown: %v", err)
	}
	logger.Info("Server exited properly")
	return serveErr
}
