package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long:  `Print the configuration as resolved from the environment, with secrets redacted.`,
	RunE:  runConfig,
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	color.Blue("Resolved configuration:")
	fmt.Printf("  %-20s: %s\n", "HOST", cfg.Host)
	fmt.Printf("  %-20s: %d\n", "PORT", cfg.Port)
	fmt.Printf("  %-20s: %s\n", "SERVICE_API_KEY", maskString(cfg.ServiceAPIKey))
	fmt.Printf("  %-20s: %s\n", "CLAUDE_ENDPOINT", cfg.ClaudeEndpoint)
	fmt.Printf("  %-20s: %s\n", "CLAUDE_API_KEY", maskString(cfg.ClaudeAPIKey))
	fmt.Printf("  %-20s: %s\n", "CLAUDE_MODEL", cfg.ClaudeModel)
	fmt.Printf("  %-20s: %s\n", "CLAUDE_API_VERSION", cfg.ClaudeAPIVersion)
	fmt.Printf("  %-20s: %s\n", "OPENAI_ENDPOINT", cfg.OpenAIEndpoint)
	fmt.Printf("  %-20s: %s\n", "OPENAI_API_KEY", maskString(cfg.OpenAIAPIKey))
	fmt.Printf("  %-20s: %s\n", "OPENAI_MODEL", cfg.OpenAIModel)
	fmt.Printf("  %-20s: %s\n", "OPENAI_MODE", cfg.OpenAIMode)
	fmt.Printf("  %-20s: %s\n", "UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
