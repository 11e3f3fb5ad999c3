package cmd

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/ui"
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Suspend batch execution",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(true)
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume batch execution",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(false)
	},
}

func setPaused(paused bool) error {
	actor, err := actorAddress()
	if err != nil {
		return err
	}
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	if err := reg.SetPaused(actor, paused); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}
	if paused {
		fmt.Println(ui.Warn("Engine paused. Executions will be rejected."))
	} else {
		fmt.Println(ui.Success("Engine unpaused."))
	}
	return nil
}
