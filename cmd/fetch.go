// Package cmd defines and implements the CLI commands for the aozorafetch executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aozoratools/aozorafetch/internal/collector"
	"github.com/aozoratools/aozorafetch/internal/download"
	"github.com/aozoratools/aozorafetch/internal/fetch"
)

// newFetchCmd creates and configures the 'fetch' subcommand.
// It walks the configured author page, collects archive links from
// every work card page, and downloads the archives sequentially.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Collects archive links and downloads the archives",
		Long: `Fetches the configured author page, follows each work card page,
collects the linked ZIP archives, and downloads them into the output
directory under sequential zero-padded names. Already-complete files
are skipped, so re-runs are cheap and idempotent.`,

		RunE: runFetchCommand,
	}
	return cmd
}

func runFetchCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger

	fetcher := fetch.NewCollyFetcher(cfg.Fetch.UserAgent, cfg.Fetch.Timeout, logger)
	pauser := fetch.TimerPauser{}

	coll := collector.New(
		fetcher,
		pauser,
		cfg.Source.AuthorURL,
		cfg.BaseURL(),
		cfg.Source.PageEncoding,
		cfg.Fetch.Delay,
		logger,
	)
	links, err := coll.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("collect archive links: %w", err)
	}

	dl := download.New(cfg.Fetch.UserAgent, cfg.Fetch.DownloadTimeout, cfg.Fetch.Delay, pauser, logger)
	if err := dl.Run(cmd.Context(), cfg.Fetch.OutputDir, links); err != nil {
		return fmt.Errorf("download archives: %w", err)
	}

	logger.Info("Fetch command finished.")
	return nil
}
