package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/entity"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRunOnceCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run-once <pipeline>",
		Short: "Run one pipeline immediately and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			defer a.container.Shutdown(context.Background())

			run, runErr := a.container.DigestService.Run(cmd.Context(), args[0], dto.TriggerManual, dto.RunPipelineRequest{DryRun: dryRun})
			printRun(cmd.OutOrStdout(), run)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "format the digest and print it without delivering")
	return cmd
}

func printRun(w io.Writer, run *dto.PipelineRunResponse) {
	if run == nil {
		return
	}

	status := color.New(color.FgGreen, color.Bold)
	switch run.Status {
	case entity.RunStatusFailed:
		status = color.New(color.FgRed, color.Bold)
	case entity.RunStatusSkipped, entity.RunStatusEmpty:
		status = color.New(color.FgYellow, color.Bold)
	case entity.RunStatusPreview:
		status = color.New(color.FgCyan, color.Bold)
	}

	status.Fprintf(w, "%s ", run.Status)
	fmt.Fprintf(w, "%s (%d items, %d chars, %d attempts, %dms)\n",
		run.Pipeline, run.ItemCount, run.Characters, run.Attempts, run.DurationMs)

	for _, warning := range run.Warnings {
		color.New(color.FgYellow).Fprintf(w, "  warning: %s\n", warning)
	}
	if run.Error != "" {
		color.New(color.FgRed).Fprintf(w, "  %s error: %s\n", run.ErrorKind, run.Error)
	}
	if run.Content != "" {
		fmt.Fprintln(w, strings.Repeat("-", 40))
		fmt.Fprintln(w, run.Content)
	}
}
