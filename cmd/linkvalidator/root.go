package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes: 0 for a clean crawl, 1 when broken links were found, 2 for
// configuration and startup failures.
const (
	exitOK     = 0
	exitBroken = 1
	exitFatal  = 2
)

// NewRootCmd creates the root command for linkvalidator.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkvalidator",
		Short: "Crawl a web site and report broken links",
		Long: `linkvalidator crawls a web site by following the references found in its
HTML documents, records the HTTP status of every fetched resource, and
reports the pages or assets that are broken, along with the pages that
reference them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose logging")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewVersionCmd())
	cmd.AddCommand(NewWorkerCmd())

	return cmd
}

// Execute runs the root command and maps the outcome to an exit code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if errors.Is(err, errBrokenLinks) {
			os.Exit(exitBroken)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
	os.Exit(exitOK)
}
