// Package cmd implements the gennaro command line interface.
package cmd

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gennaro-ai/gennaro/internal/config"
	"github.com/gennaro-ai/gennaro/internal/logger"

	_ "github.com/gennaro-ai/gennaro/internal/llm/allproviders"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gennaro",
	Short: "Workflow execution engine for AI agent pipelines.",
	Long:  "Gennaro executes workflow graphs of agents, tools and control nodes.",
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.gennaro/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(serveEventsCmd())
	rootCmd.AddCommand(versionCmd())
}

// loadConfig reads .env, resolves the configuration, and returns a
// context carrying a configured logger.
func loadConfig() (*config.Config, context.Context, error) {
	_ = godotenv.Load()

	var opts []config.LoaderOption
	if cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, err
	}

	logOpts := logger.Options{
		Debug:  cfg.LogLevel == "debug",
		Format: cfg.LogFormat,
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		logOpts.LogFile = f
	}
	ctx := logger.WithLogger(context.Background(), logger.NewLogger(logOpts))
	return cfg, ctx, nil
}
