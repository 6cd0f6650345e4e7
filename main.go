package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/multirunner/cmd"
	"github.com/smazurov/multirunner/internal/config"
	"github.com/smazurov/multirunner/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cmd.Options{}

	root := &cobra.Command{
		Use:   "multirunner",
		Short: "Run many processes in parallel and collect their output",
		Long: `multirunner runs batches of programs, scripts and code snippets on a bounded ` +
			`process pool and reports the exit code, stdout and stderr of each one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			// Load configuration: flags > env > config file
			if err := config.LoadConfig(opts, c); err != nil {
				return err
			}

			loggingConfig := config.LoadLoggingConfig(opts.Config)
			if opts.LoggingLevel != "" {
				loggingConfig.Level = opts.LoggingLevel
			}
			if opts.LoggingFormat != "" {
				loggingConfig.Format = opts.LoggingFormat
			}
			logging.Initialize(loggingConfig)

			logging.GetLogger("config").Debug("Configuration loaded",
				slog.String("config", opts.Config),
				slog.Int("max_parallel", opts.MaxParallel),
				slog.Duration("timeout", opts.Timeout),
				slog.String("strategy", opts.Strategy))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.LoggingLevel, "logging-level", "", "Global logging level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.LoggingFormat, "logging-format", "", "Logging format (text, json)")

	root.AddCommand(
		cmd.CreateRunCmd(opts),
		cmd.CreateEscapeCmd(),
		cmd.CreateVersionCmd(),
	)
	return root
}
