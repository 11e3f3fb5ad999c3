package cmd

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/ui"
	"github.com/spf13/cobra"
)

var identityKeyFlag string

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage actor identities",
	Long: `Identities name the addresses the CLI acts as: the administrator and
any callers. Keys live in the OS keychain; only metadata is stored in the
config directory.`,
}

var identityAddCmd = &cobra.Command{
	Use:   "add <name> [address]",
	Short: "Add an identity",
	Long: `Add an identity. With --key the address is derived from the private
key and the key is stored in the keychain; with a positional address the
identity is watch-only.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		mgr := newKeysManager()

		if identityKeyFlag != "" {
			id, err := mgr.Import(name, identityKeyFlag)
			if err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("Identity %q added: %s", name, ui.Addr(id.Address))))
		} else {
			if len(args) < 2 {
				return fmt.Errorf("address required for a watch-only identity\n  Usage: aggrex identity add <name> <address>\n  Or with a key: aggrex identity add <name> --key <private-key>")
			}
			addr, err := parseAddressArg(args[1], "identity")
			if err != nil {
				return err
			}
			id, err := mgr.AddWatchOnly(name, addr)
			if err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("Watch-only identity %q added: %s", name, ui.Addr(id.Address))))
		}
		fmt.Println(ui.Hint(fmt.Sprintf("Set as default with: aggrex identity use %s", name)))
		return nil
	},
}

var identityGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a fresh identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newKeysManager()
		id, err := mgr.Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Identity %q generated: %s", args[0], ui.Addr(id.Address))))
		return nil
	},
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newKeysManager()
		ids := mgr.List()
		if len(ids) == 0 {
			fmt.Println(ui.Meta("No identities. Add one with: aggrex identity add"))
			return nil
		}
		tbl := ui.NewTable([]ui.Column{
			{Title: "NAME", Width: 16},
			{Title: "ADDRESS", Width: 44},
			{Title: "DEFAULT", Width: 8},
		})
		for _, id := range ids {
			def := ""
			if id.IsDefault {
				def = "✓"
			}
			tbl.AddRow(ui.Row{id.Name, id.Address, def})
		}
		fmt.Println(tbl.Render())
		return nil
	},
}

var identityUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newKeysManager()
		if err := mgr.SetDefault(args[0]); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Default identity is now %q", args[0])))
		return nil
	},
}

var identityRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an identity and its stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newKeysManager()
		if err := mgr.Remove(args[0]); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Identity %q removed", args[0])))
		return nil
	},
}

func init() {
	identityAddCmd.Flags().StringVar(&identityKeyFlag, "key", "", "hex private key (stored in the keychain)")
	identityCmd.AddCommand(identityAddCmd, identityGenerateCmd, identityListCmd, identityUseCmd, identityRemoveCmd)
}
