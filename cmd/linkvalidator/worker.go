package main

import (
	"github.com/spf13/cobra"

	"github.com/bartdag/linkvalidator/internal/crawl"
)

// NewWorkerCmd creates the hidden worker command. The process-mode master
// launches its own binary with this subcommand and drives it over
// stdin/stdout; it is never invoked by hand.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    crawl.WorkerCommand,
		Short:  "Run as a crawl worker process (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return crawl.RunProcessWorker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
