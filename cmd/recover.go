package cmd

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/plan"
	"github.com/aggrex/aggrex/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	recoverPlanFlag  string
	recoverTokenFlag string
	recoverToFlag    string
)

var recoverCmd = &cobra.Command{
	Use:   "recover --plan <file> --to <address> [--token <address>]",
	Short: "Sweep stray funds out of the engine account",
	Long: `Materialize a plan's world and sweep the engine's entire balance of a
token to the given address. Without --token the native balance is swept.
Administrator only.

Example:
  aggrex recover --plan world.json --token 0x..a01 --to 0x..ad --as admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recoverPlanFlag == "" || recoverToFlag == "" {
			return fmt.Errorf("--plan and --to are required")
		}
		to, err := parseAddressArg(recoverToFlag, "recipient")
		if err != nil {
			return err
		}
		var token common.Address
		if recoverTokenFlag != "" {
			if token, err = parseAddressArg(recoverTokenFlag, "token"); err != nil {
				return err
			}
		}

		actor, err := actorAddress()
		if err != nil {
			return err
		}
		p, err := plan.Load(recoverPlanFlag)
		if err != nil {
			return err
		}
		ledger, err := p.BuildLedger()
		if err != nil {
			return err
		}
		engineAddr, err := cfg.EngineAccount()
		if err != nil {
			return err
		}
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		sink, err := openSink()
		if err != nil {
			return err
		}

		if !ui.ConfirmDanger(fmt.Sprintf("Sweep engine balance to %s?", ui.TruncateAddr(to.Hex()))) {
			fmt.Println(ui.Meta("Aborted."))
			return nil
		}

		eng := engine.New(ledger, reg, engineAddr, cfg.Limits(), sink)
		swept, err := eng.Recover(actor, token, to)
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Swept %s to %s", ui.Val(swept.Dec()), ui.Addr(to.Hex()))))
		return nil
	},
}

func init() {
	recoverCmd.Flags().StringVar(&recoverPlanFlag, "plan", "", "plan file describing the world (JSON)")
	recoverCmd.Flags().StringVar(&recoverTokenFlag, "token", "", "token to sweep (omit for native)")
	recoverCmd.Flags().StringVar(&recoverToFlag, "to", "", "recipient address")
}
