package cmd

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the call-target whitelist",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <address>...",
	Short: "Whitelist one or more targets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actorAddress()
		if err != nil {
			return err
		}
		targets := make([]common.Address, 0, len(args))
		for _, a := range args {
			addr, err := parseAddressArg(a, "target")
			if err != nil {
				return err
			}
			targets = append(targets, addr)
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if len(targets) == 1 {
			err = reg.AddTarget(actor, targets[0])
		} else {
			err = reg.AddTargets(actor, targets)
		}
		if err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Whitelisted %d target(s)", len(targets))))
		return nil
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove a target from the whitelist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actorAddress()
		if err != nil {
			return err
		}
		target, err := parseAddressArg(args[0], "target")
		if err != nil {
			return err
		}
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if err := reg.RemoveTarget(actor, target); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Removed %s", ui.Addr(target.Hex()))))
		return nil
	},
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		targets := reg.Targets()
		if len(targets) == 0 {
			fmt.Println(ui.Meta("Whitelist is empty."))
			return nil
		}
		tbl := ui.NewTable([]ui.Column{{Title: "TARGET", Width: 44}})
		for _, t := range targets {
			tbl.AddRow(ui.Row{t.Hex()})
		}
		fmt.Println(tbl.Render())
		return nil
	},
}

func init() {
	whitelistCmd.AddCommand(whitelistAddCmd, whitelistRemoveCmd, whitelistListCmd)
}
