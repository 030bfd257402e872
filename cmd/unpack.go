package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aozoratools/aozorafetch/internal/archive"
	"github.com/aozoratools/aozorafetch/internal/textconv"
)

// newUnpackCmd creates and configures the 'unpack' subcommand.
// It extracts every downloaded archive and converts legacy-encoded
// text members to UTF-8 in place.
func newUnpackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack",
		Short: "Extracts downloaded archives and converts text to UTF-8",
		Long: `Extracts each ZIP archive in the input directory into a folder
named after the archive, then rewrites extracted text and markup
members from legacy Japanese encodings to UTF-8. Binary members and
files already in UTF-8 are left untouched.`,

		RunE: runUnpackCommand,
	}
	return cmd
}

func runUnpackCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger

	converter := textconv.New(cfg.Unpack.TextExts)
	extractor := archive.NewExtractor(cfg.Unpack.InputDir, cfg.Unpack.OutputDir, converter, logger)

	// Sentinel errors map to distinct exit codes, so they pass through
	// unwrapped.
	if err := extractor.Run(cmd.Context()); err != nil {
		return err
	}

	logger.Info("Unpack command finished.")
	return nil
}
