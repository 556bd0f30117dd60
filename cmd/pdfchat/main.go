// Package main implements pdfchat: chat with PDF documents over a local
// Ollama model, from the browser or the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"pdf-chat-rag/internal/app"
	"pdf-chat-rag/internal/config"
	"pdf-chat-rag/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// configPath is an optional YAML config file
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pdfchat",
	Short: "Ask questions about PDF documents",
	Long: `pdfchat indexes uploaded PDFs and answers questions about them with a
local Ollama model.

Configuration comes from defaults, the --config YAML file, a .env file and
PDFCHAT_* environment variables (PDFCHAT_OLLAMA__HOST -> ollama.host).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
}

// setup loads configuration and builds the application
func setup(ctx context.Context, quiet bool) (*config.Config, *app.App, *zap.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	level := cfg.Logging.Level
	if quiet {
		// terminal modes keep stderr clean unless something goes wrong
		level = "error"
	}
	logger, err := logging.New(level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	a, closeApp, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, nil, fmt.Errorf("failed to start: %w", err)
	}

	cleanup := func() {
		closeApp()
		_ = logger.Sync()
	}
	return cfg, a, logger, cleanup, nil
}
