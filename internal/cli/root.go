package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/logshield/internal/config"
	"github.com/gzhole/logshield/internal/logger"
)

// ErrFailedResults is returned by analyze when results reach the --fail-on
// status. The entrypoint maps it to exit code 2.
var ErrFailedResults = errors.New("analysis produced failing results")

var (
	configPath string
	logLevel   string
	logJSON    bool
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "logshield",
	Short: "logshield - risk-scored analysis of security and compatibility logs",
	Long: `logshield evaluates structured log entries against declarative rules,
scores every match with pattern, severity and tool-reliability features plus
the tenant's recent history, and reports explained, classified results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.logshield/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "Output format: table, json or jsonl (default: table on a terminal, json otherwise)")
}

// ExecuteContext runs the CLI with ctx, which serve and analyze observe
// for cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logJSON {
		cfg.Logging.JSON = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(logger.Config{Level: level, JSON: cfg.Logging.JSON, File: cfg.Logging.File})
}
