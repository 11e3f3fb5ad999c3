package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/plan"
	"github.com/aggrex/aggrex/internal/ui"
	"github.com/spf13/cobra"
)

var executePlanFlag string

var executeCmd = &cobra.Command{
	Use:   "execute --plan <file>",
	Short: "Run an execution plan as one atomic batch",
	Long: `Load a plan file, materialize its world into a fresh ledger and run
the batch through the engine. The plan's registry section (if present) is
installed on top of the persisted registry before execution.

Examples:
  aggrex execute --plan swap.json
  aggrex execute --plan swap.json --as admin -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if executePlanFlag == "" {
			return fmt.Errorf("--plan is required")
		}

		p, err := plan.Load(executePlanFlag)
		if err != nil {
			return err
		}
		caller, err := p.CallerAddress()
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
		// Plan registry entries are installed by the administrator (or
		// freely while the registry is unclaimed).
		if err := p.ApplyRegistry(reg, reg.Admin()); err != nil {
			return fmt.Errorf("applying plan registry: %w", err)
		}

		ledger, err := p.BuildLedger()
		if err != nil {
			return err
		}
		batch, err := p.BuildBatch()
		if err != nil {
			return err
		}
		sink, err := openSink()
		if err != nil {
			return err
		}

		eng := engine.New(ledger, reg, engineAddr, cfg.Limits(), sink)

		sp := ui.NewSpinner("Executing batch…")
		sp.Start()
		results, execErr := eng.Execute(context.Background(), caller, batch)
		sp.Stop()

		if execErr != nil {
			fmt.Println(ui.Err(fmt.Sprintf("Execution reverted: %v", execErr)))
			return execErr
		}

		fmt.Println(ui.Success(fmt.Sprintf("Batch executed: %d calls", len(results))))
		if len(results) > 0 {
			tbl := ui.NewTable([]ui.Column{
				{Title: "CALL", Width: 5},
				{Title: "RETURN DATA", Width: 70},
			})
			for i, ret := range results {
				data := "(none)"
				if len(ret) > 0 {
					data = "0x" + hex.EncodeToString(ret)
				}
				tbl.AddRow(ui.Row{fmt.Sprintf("%d", i), data})
			}
			fmt.Println(tbl.Render())
		}

		if verbose {
			pairs := [][2]string{
				{"Caller", caller.Hex()},
				{"Engine", engineAddr.Hex()},
			}
			for _, t := range batch.FlushTokens {
				bal := ledger.BalanceOf(t, caller)
				pairs = append(pairs, [2]string{"Flushed " + ui.TruncateAddr(t.Hex()), bal.Dec()})
			}
			pairs = append(pairs, [2]string{"Native balance", ledger.NativeBalance(caller).Dec()})
			fmt.Println(ui.KeyValueBlock("Post-execution", pairs))
		}
		return nil
	},
}

func init() {
	executeCmd.Flags().StringVar(&executePlanFlag, "plan", "", "plan file (JSON)")
}
