// Command tbcheck runs data-quality rules against spreadsheet and CSV files
// from the command line, or serves the web interface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tbcheck/internal/application"
	"github.com/JonMunkholm/tbcheck/internal/config"
	"github.com/JonMunkholm/tbcheck/internal/core"
	"github.com/JonMunkholm/tbcheck/internal/logging"
	"github.com/JonMunkholm/tbcheck/internal/store"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version string

// loadConfig is replaced in tests.
var loadConfig = config.Load

type globalOptions struct {
	envFile  string
	logLevel string
	cfg      *config.Config
	history  store.Store
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "tbcheck",
		Short: "Check tabular data against rule files",
		Long: `tbcheck loads an xlsx, xls or csv file, runs a set of Go rule functions
against one sheet and writes every failing result to all_results.xlsx.

Rules are plain Go source interpreted in a sandbox. Without a rule file the
built-in default set is used.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("load %s: %w", opts.envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			// Command output owns stdout; logs go to stderr.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.history != nil {
				opts.history.Close()
				opts.history = nil
			}
		},
		Version: version(),
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "load environment variables from this file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSheetsCmd(opts),
		newPreviewCmd(opts),
		newRulesCmd(opts),
		newRunCmd(opts),
		newServeCmd(opts),
		newHistoryCmd(opts),
		newBatchCmd(opts),
	)
	return rootCmd
}

// service builds a check service. Run history goes wherever the
// configuration points; without one it is kept in memory for this process.
func (o *globalOptions) service(ctx context.Context) (*core.Service, error) {
	if o.history == nil {
		h, err := application.OpenHistory(ctx, o.cfg)
		if err != nil {
			return nil, err
		}
		o.history = h
	}
	return core.NewService(o.cfg, o.history)
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown version)"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
