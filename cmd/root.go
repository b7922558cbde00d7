// Package cmd defines the CLI surface: start, stop, status, and config.
package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	AppName = "cursor-azure-claude"
	Version = "0.3.0"
)

var (
	logger  *slog.Logger
	baseDir string
)

var rootCmd = &cobra.Command{
	Use:     AppName,
	Short:   "Chat-completions proxy for Claude and GPT upstreams",
	Long:    `An HTTP proxy that accepts OpenAI chat-completions requests, routes them by model name, and transcodes them for an Anthropic-style or OpenAI-style upstream, including streaming.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	setupLogging(false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	baseDir = filepath.Join(homeDir, "."+AppName)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
}
