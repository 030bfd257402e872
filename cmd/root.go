package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aozoratools/aozorafetch/internal/archive"
	"github.com/aozoratools/aozorafetch/internal/config"
	"github.com/aozoratools/aozorafetch/internal/id/uuid"
	"github.com/aozoratools/aozorafetch/internal/logging"
	"github.com/aozoratools/aozorafetch/internal/metrics"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App bundles the services shared by every subcommand.
type App struct {
	Config config.Config
	Logger *zap.Logger
	RunID  string

	metricsServer *metrics.Server
}

// Close shuts down background services and flushes logs.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func() (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	runID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("run_id", runID))

	metrics.Init()
	app := &App{Config: cfg, Logger: logger, RunID: runID}
	if cfg.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		app.metricsServer.Start()
	}
	return app, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aozorafetch",
		Short: "Mirrors an author's works from the Aozora Bunko digital library.",
		Long: `aozorafetch downloads the ZIP archives linked from an author's
works-listing page on Aozora Bunko, then unpacks them and rewrites
legacy Shift_JIS-family text as UTF-8.

The two pipelines run as separate commands: 'fetch' collects links and
downloads archives; 'unpack' extracts them and normalizes encodings.`,
		SilenceUsage: true,

		// Runs before the subcommand's RunE: build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp()
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and AOZORA_* env vars are used when unset)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newUnpackCmd())

	return cmd
}

// Execute is the main entry point. Exit codes: 0 on success, 2 when
// the unpack input directory is missing, 3 when it holds no archives,
// and 1 for any other fatal error. Per-item failures are logged and do
// not affect the exit code.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, archive.ErrInputMissing):
		return 2
	case errors.Is(err, archive.ErrNoArchives):
		return 3
	default:
		return 1
	}
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
