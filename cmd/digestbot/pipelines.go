package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List configured pipelines and their schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			next := make(map[string]string)
			for _, e := range a.container.Scheduler.Entries() {
				next[e.Pipeline] = e.Next.Format("2006-01-02 15:04 MST")
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			color.New(color.Bold).Fprintln(tw, "NAME\tSCHEDULE\tSINK\tSYNTHESIZE\tNEXT")
			for _, p := range a.container.DigestService.Pipelines() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", p.Name, p.Schedule, p.Sink, p.Synthesize, next[p.Name])
			}
			return tw.Flush()
		},
	}
}
