// Package cmd wires the aggrex command line: batch execution against plan
// files, registry administration and audit inspection.
package cmd

import (
	"fmt"
	"os"

	"github.com/aggrex/aggrex/internal/config"
	"github.com/spf13/cobra"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/aggrex/aggrex/cmd.Version=1.2.3" .
var Version = "1.0.0"

var (
	cfgDir  string
	cfg     *config.Config
	verbose bool
	asActor string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "aggrex",
	Short: "Atomic multicall execution engine",
	Long: `aggrex — run atomic pull/approve/call/flush batches against a
simulated token ledger.

  A batch pulls caller funds into engine custody, grants temporary
  approvals, runs whitelisted calls with live-balance injection, revokes
  the approvals and flushes only the net balance gains back to the caller.
  Any failure reverts the whole batch.

The registry (target whitelist, injection offsets, pause flag) persists in
the config directory and is administrator-gated. Use --as to act as a
stored identity.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default: $AGGREX_CONFIG_DIR or ~/.aggrex)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&asActor, "as", "", "act as a stored identity (name) or raw address")

	rootCmd.AddCommand(
		executeCmd,
		planCmd,
		recoverCmd,
		statusCmd,
		whitelistCmd,
		offsetsCmd,
		pauseCmd,
		unpauseCmd,
		adminCmd,
		identityCmd,
		selectorCmd,
		watchCmd,
		configCmd,
	)
}
