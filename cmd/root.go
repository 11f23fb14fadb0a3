package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before any subcommand runs
	cfg = config.Default()
)

// RegisterCommands adds global flags and all subcommands to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/assetgraph/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")
	rootCmd.PersistentPreRunE = setup
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(findRefsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(watchCmd())
}

// setup loads the config and installs the default logger
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logFormat != "" {
		logCfg.Format = logFormat
	}
	logger, err := logCfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("invalid logging flags: %w", err)
	}
	slog.SetDefault(logger)
	return nil
}
