package cmd

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the audit log in a live view",
	RunE: func(cmd *cobra.Command, args []string) error {
		model := ui.WatchModel{Path: cfg.AuditPath()}
		p := tea.NewProgram(model)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("watch view: %w", err)
		}
		return nil
	},
}
