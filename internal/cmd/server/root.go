// Package server holds the prism command line: the HTTP server and the
// maintenance commands that share its configuration.
package server

import (
	"fmt"
	"io"

	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/spf13/cobra"
)

// Version is reported by the version flag and the health endpoint when the
// configuration does not set one.
var Version = "dev"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	logLevel string
}

// NewRootCommand builds the prism command tree. Running it without a sub
// command starts the server.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "prism",
		Short:         "Power trace dashboard",
		Long:          "prism annotates power traces with night zones, rising zones and severity bands and serves them over HTTP.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newWarmCacheCommand(opts),
		newAnalyzeCommand(opts),
	)
	return root
}

// loadConfig reads the configuration and applies the persistent flags.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs go to out so commands that
// write results to stdout can keep them apart.
func newLogger(cfg *config.Config, out io.Writer) *logging.StandardLogger {
	return logging.Wrap(logging.NewLoggerWithOutput(cfg.LogLevel, cfg.Environment, out))
}
