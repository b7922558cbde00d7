package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show proxy service status",
	Run:   runStatus,
}

func runStatus(_ *cobra.Command, _ []string) {
	procMgr := process.NewManager(baseDir)

	running := procMgr.IsRunning()
	pid := procMgr.ReadPID()

	color.Blue("Status for %s:", AppName)
	fmt.Printf("  %-18s: %v\n", "Running", running)
	fmt.Printf("  %-18s: %d\n", "PID", pid)
	fmt.Printf("  %-18s: v%s\n", "Version", Version)

	cfg, err := config.Load()
	if err != nil {
		color.Yellow("  configuration error: %v", err)
		return
	}

	fmt.Printf("  %-18s: http://%s\n", "Endpoint", cfg.Addr())
	fmt.Printf("  %-18s: %s\n", "OpenAI mode", cfg.OpenAIMode)

	if !running {
		return
	}

	health, err := probeHealth(cfg)
	if err != nil {
		color.Yellow("  health probe failed: %v", err)
		return
	}

	fmt.Printf("  %-18s: %v\n", "Claude configured", health["claude_configured"])
	fmt.Printf("  %-18s: %v\n", "OpenAI configured", health["openai_configured"])
	fmt.Printf("  %-18s: %v\n", "Auth enabled", health["auth_enabled"])
}

func probeHealth(cfg config.Config) (map[string]any, error) {
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://%s/health", cfg.Addr()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}

	return health, nil
}
