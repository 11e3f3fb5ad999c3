package cmd

import (
	"fmt"
	"strconv"

	"github.com/aggrex/aggrex/internal/plan"
	"github.com/aggrex/aggrex/internal/ui"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Validate a plan file and summarize the world and batch it describes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		caller, err := p.CallerAddress()
		if err != nil {
			return err
		}
		// Build everything once to surface bad addresses, amounts and
		// payloads before an execute run ever touches the registry.
		if _, err := p.BuildLedger(); err != nil {
			return err
		}
		batch, err := p.BuildBatch()
		if err != nil {
			return err
		}

		targets, offsets := 0, 0
		if p.Registry != nil {
			targets = len(p.Registry.Targets)
			offsets = len(p.Registry.Offsets)
		}
		value := "0"
		if batch.Value != nil {
			value = batch.Value.Dec()
		}

		fmt.Println(ui.KeyValueBlock("Plan", [][2]string{
			{"File", args[0]},
			{"Caller", caller.Hex()},
			{"Tokens", strconv.Itoa(len(p.Tokens))},
			{"Routers", strconv.Itoa(len(p.Routers))},
			{"Registry targets", strconv.Itoa(targets)},
			{"Registry offsets", strconv.Itoa(offsets)},
			{"Attached value", value},
			{"Pulls", strconv.Itoa(len(batch.Pulls))},
			{"Approvals", strconv.Itoa(len(batch.Approvals))},
			{"Calls", strconv.Itoa(len(batch.Calls))},
			{"Flush tokens", strconv.Itoa(len(batch.FlushTokens))},
		}))
		fmt.Println(ui.Success("Plan is valid."))
		return nil
	},
}
