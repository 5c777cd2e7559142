package main

import (
	"ai-digest-bot/internal/bootstrap"
	"ai-digest-bot/internal/config"
	"ai-digest-bot/internal/pkg/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "digestbot",
		Short:         "Scheduled digests and a conversational relay backed by an LLM",
		Long:          "digestbot runs scheduled digest pipelines (ingest, rank, synthesize, deliver) and answers chat messages with a bounded per-channel history.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newRunOnceCmd(),
		newChatCmd(),
		newPipelinesCmd(),
	)

	return rootCmd
}

// app holds what every subcommand needs after configuration is loaded.
type app struct {
	cfg       *config.Config
	log       *logger.ZapLogger
	container *bootstrap.Container
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	container, err := bootstrap.NewContainer(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	return &app{cfg: cfg, log: log, container: container}, nil
}
