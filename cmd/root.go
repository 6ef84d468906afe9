// Package cmd defines and implements the CLI commands for the
// snapfresh executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapfresh/snapfresh/internal/app"
	"github.com/snapfresh/snapfresh/internal/config"
	"github.com/snapfresh/snapfresh/internal/refresh"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Exit statuses. Partial failure is distinct so callers can tell a
// data-quality problem from a fatal misconfiguration.
const (
	exitFatal   = 1
	exitPartial = 2
)

// newApp is the application factory. It's a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapfresh",
		Short: "Keeps catalogs of time-sensitive URLs fresh and verified.",
		Long: `snapfresh rewrites the timestamp parameter embedded in each catalog
URL and verifies the result is reachable, on a schedule, across many
endpoints concurrently. Downstream consumers read the persisted output
catalog; it is always complete and known-reachable or marked stale.`,

		SilenceUsage: true,

		// Runs before the subcommand's RunE: load config, build and
		// inject the application container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./snapfresh.yaml)")

	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newDomainsCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. Exit status 0 means a fully clean
// pass; per-entry failures and fatal errors exit with distinct codes.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, refresh.ErrPartialFailure) {
			os.Exit(exitPartial)
		}
		os.Exit(exitFatal)
	}
}
