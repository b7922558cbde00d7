package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/process"
	"github.com/bashirn3/cursor-azure-claude/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy service",
	Long:  `Start the proxy service in the foreground. Configuration is read from environment variables.`,
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	color.Green("Starting %s v%s on %s", AppName, Version, cfg.Addr())

	if !cfg.ClaudeConfigured() {
		color.Yellow("Claude upstream not configured; claude-routed requests will fail")
	}
	if !cfg.OpenAIConfigured() {
		color.Yellow("OpenAI upstream not configured; gpt-routed requests will fail")
	}

	logger.Info("starting server",
		"host", cfg.Host,
		"port", cfg.Port,
		"openai_mode", cfg.OpenAIMode,
		"auth_enabled", cfg.AuthEnabled(),
	)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	srv := server.New(cfg, Version, logger)
	return srv.Start()
}
