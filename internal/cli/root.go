// Package cli provides the command-line interface for tryon.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/logging"
	"github.com/faishion/tryon-client/internal/version"
)

var (
	// Global flags
	cfgFile string
	logFile string
	verbose bool
	debug   bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tryon",
		Short: "fAIshion try-on client - browse deals, review try-ons, ask the stylist",
		Long: `tryon ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for the fAIshion services.

  products  Browse the deals feed with search and category filters
  history   Review your virtual try-on history
  chat      Ask the styling assistant
  session   Inspect or edit the stored session
  config    Manage the configuration file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			if logFile != "" {
				if err := logging.EnableFileOutput(config.ExpandPath(logFile)); err != nil {
					return err
				}
				logger = logging.NewDefaultCLILogger()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.CloseFileOutput()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop to handle repeated Ctrl+C
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newProductsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}

// configPath returns the --config path or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile), nil
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration, applies its logging settings and
// prompts for a proxy password when one is needed.
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cfg.Debug && !(verbose || debug) {
		logging.SetGlobalLevel(zerolog.DebugLevel)
	}
	if logFile == "" && cfg.LogFile != "" {
		if err := logging.EnableFileOutput(cfg.LogFile); err != nil {
			GetLogger().Warn().Err(err).Str("path", cfg.LogFile).Msg("could not open log file")
		} else {
			logger = logging.NewDefaultCLILogger()
		}
	}

	if err := promptProxyPassword(cfg); err != nil {
		return nil, err
	}

	GetLogger().Debug().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}
