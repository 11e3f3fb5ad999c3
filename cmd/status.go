package cmd

import (
	"fmt"
	"strconv"

	"github.com/aggrex/aggrex/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine and registry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		admin := "(unclaimed)"
		if a := reg.Admin(); a != (common.Address{}) {
			admin = a.Hex()
		}
		paused := ui.Success("running")
		if reg.Paused() {
			paused = ui.Warn("paused")
		}

		limits := cfg.Limits()
		fmt.Println(ui.KeyValueBlock("Engine", [][2]string{
			{"Address", cfg.EngineAddress},
			{"State", paused},
			{"Administrator", admin},
			{"Whitelisted targets", strconv.Itoa(len(reg.Targets()))},
			{"Injection offsets", strconv.Itoa(len(reg.Offsets()))},
			{"Max pulls", strconv.Itoa(limits.MaxPulls)},
			{"Max approvals", strconv.Itoa(limits.MaxApprovals)},
			{"Max calls", strconv.Itoa(limits.MaxCalls)},
			{"Max flush tokens", strconv.Itoa(limits.MaxFlushTokens)},
			{"Config dir", cfg.Dir()},
		}))
		return nil
	},
}
