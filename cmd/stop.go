package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bashirn3/cursor-azure-claude/internal/process"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the proxy service",
	RunE:  runStop,
}

func runStop(_ *cobra.Command, _ []string) error {
	procMgr := process.NewManager(baseDir)

	if !procMgr.IsRunning() {
		color.Yellow("%s is not running", AppName)
		return nil
	}

	if err := procMgr.Stop(); err != nil {
		return err
	}

	color.Green("%s stopped", AppName)
	return nil
}
