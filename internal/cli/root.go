// Package cli implements the weekpi command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/internal/config"
	"github.com/spektr-org/weekpi/internal/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// defaultConfigPath is read when --config is not given and the file exists.
const defaultConfigPath = "weekpi.yaml"

var outputFormats = map[string]bool{"json": true, "pretty": true, "table": true, "csv": true, "text": true}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	OutFile      string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string

	outFile *os.File
}

// NewRootCommand creates the root command with all global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "weekpi",
		Short: "Weekly auto-insurance KPI analysis",
		Long: "weekpi reads weekly cumulative auto-insurance exports and computes loss, cost\n" +
			"and contribution KPIs with cascading filters, week-over-week comparison,\n" +
			"trend lines and threshold scoring.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPostRun(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./weekpi.yaml when present)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "table", "output format (json, pretty, table, csv, text)")
	pf.StringVar(&opts.OutFile, "out", "", "write output to file instead of stdout")

	cmd.AddCommand(
		newKPICmd(),
		newCompareCmd(),
		newTrendCmd(),
		newOptionsCmd(),
		newScoreCmd(),
		newPivotCmd(),
		newValidateCmd(),
		newSchemaCmd(),
		newCacheCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	if !outputFormats[opts.OutputFormat] {
		return fmt.Errorf("unknown output format %q", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	cliCtx := &CLIContext{Config: cfg, Logger: logger, OutputFormat: opts.OutputFormat}
	if opts.OutFile != "" {
		f, err := os.Create(opts.OutFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		cliCtx.outFile = f
		cmd.SetOut(f)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

func persistentPostRun(cmd *cobra.Command) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil || cliCtx.outFile == nil {
		return nil
	}
	if err := cliCtx.outFile.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	cliCtx.Logger.Info("output written", logging.String("path", cliCtx.outFile.Name()))
	return nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.LoadFromEnv()
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New("cli: command has no context")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New("cli: context not initialized")
	}
	return cliCtx, nil
}
