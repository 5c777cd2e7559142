package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"ai-digest-bot/internal/server"
	"ai-digest-bot/internal/tracer"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, chat relay and HTTP control plane until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			shutdownTracer := tracer.InitTracer(a.log)
			defer func() { _ = shutdownTracer(context.Background()) }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.container.Start(ctx); err != nil {
				a.container.Shutdown(context.Background())
				return err
			}
			srv := server.New(a.cfg, a.container)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Run)
			g.Go(func() error {
				<-gctx.Done()
				a.log.Info("Main", "Shutting down", nil)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				httpErr := srv.Shutdown(shutdownCtx)
				a.container.Shutdown(shutdownCtx)
				return httpErr
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
