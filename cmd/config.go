package cmd

import (
	"fmt"
	"strconv"

	"github.com/aggrex/aggrex/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.KeyValueBlock("Configuration", [][2]string{
			{"engine_address", cfg.EngineAddress},
			{"max_pulls", strconv.Itoa(cfg.MaxPulls)},
			{"max_approvals", strconv.Itoa(cfg.MaxApprovals)},
			{"max_calls", strconv.Itoa(cfg.MaxCalls)},
			{"max_flush_tokens", strconv.Itoa(cfg.MaxFlushTokens)},
			{"max_whitelist_batch", strconv.Itoa(cfg.MaxWhitelistBatch)},
			{"config dir", cfg.Dir()},
		}))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and persist it.

Keys: engine_address, max_pulls, max_approvals, max_calls,
max_flush_tokens, max_whitelist_batch`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if key == "engine_address" {
			cfg.EngineAddress = value
			if _, err := cfg.EngineAccount(); err != nil {
				return err
			}
		} else {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("%s wants a positive integer, got %q", key, value)
			}
			switch key {
			case "max_pulls":
				cfg.MaxPulls = n
			case "max_approvals":
				cfg.MaxApprovals = n
			case "max_calls":
				cfg.MaxCalls = n
			case "max_flush_tokens":
				cfg.MaxFlushTokens = n
			case "max_whitelist_batch":
				cfg.MaxWhitelistBatch = n
			default:
				return fmt.Errorf("unknown key %q", key)
			}
		}

		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("%s = %s", key, value)))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
