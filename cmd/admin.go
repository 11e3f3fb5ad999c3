package cmd

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the administrator role",
}

var adminShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current administrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		admin := reg.Admin()
		if admin == (common.Address{}) {
			fmt.Println(ui.Warn("Registry is unclaimed: any actor may administer it."))
			fmt.Println(ui.Hint("Claim it with: aggrex admin transfer <address> --as <address>"))
			return nil
		}
		fmt.Println(ui.KeyValueBlock("Administrator", [][2]string{
			{"Address", admin.Hex()},
		}))
		return nil
	},
}

var adminTransferCmd = &cobra.Command{
	Use:   "transfer <address>",
	Short: "Hand the administrator role to a new address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newAdmin, err := parseAddressArg(args[0], "new admin")
		if err != nil {
			return err
		}
		actor, err := actorAddress()
		if err != nil {
			return err
		}
		if !ui.ConfirmDanger(fmt.Sprintf("Transfer administrator role to %s?", ui.TruncateAddr(newAdmin.Hex()))) {
			fmt.Println(ui.Meta("Aborted."))
			return nil
		}
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if err := reg.TransferAdmin(actor, newAdmin); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Administrator is now %s", ui.Addr(newAdmin.Hex()))))
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminShowCmd, adminTransferCmd)
}
