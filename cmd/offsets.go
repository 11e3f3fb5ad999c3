package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/registry"
	"github.com/aggrex/aggrex/internal/ui"
	"github.com/spf13/cobra"
)

var (
	offsetSigFlag      string
	offsetSelectorFlag string
)

var offsetsCmd = &cobra.Command{
	Use:   "offsets",
	Short: "Manage the injection offset table",
	Long: `Each function a payload injection may target is registered here: the
4-byte identifier of the function together with the byte offset of its
amount argument. The engine refuses to patch a payload at any other
location.`,
}

var offsetsSetCmd = &cobra.Command{
	Use:   "set <offset> (--sig <signature> | --selector <hex>)",
	Short: "Register the injection offset of a function",
	Long: `Register the injection offset of a function, named by canonical
signature or raw selector hex.

Examples:
  aggrex offsets set 4 --sig "swapExactIn(uint256,address)"
  aggrex offsets set 36 --selector 0x38ed1739`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid offset %q", args[0])
		}
		sel, err := resolveSelector()
		if err != nil {
			return err
		}
		actor, err := actorAddress()
		if err != nil {
			return err
		}
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if err := reg.SetOffset(actor, sel, offset); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Offset %d registered for 0x%x", offset, sel)))
		return nil
	},
}

var offsetsClearCmd = &cobra.Command{
	Use:   "clear (--sig <signature> | --selector <hex>)",
	Short: "Clear a function's injection offset",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := resolveSelector()
		if err != nil {
			return err
		}
		actor, err := actorAddress()
		if err != nil {
			return err
		}
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if err := reg.SetOffset(actor, sel, 0); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Offset cleared for 0x%x", sel)))
		return nil
	},
}

var offsetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered injection offsets",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		offsets := reg.Offsets()
		if len(offsets) == 0 {
			fmt.Println(ui.Meta("No offsets registered."))
			return nil
		}

		type entry struct {
			sel    string
			offset int
		}
		entries := make([]entry, 0, len(offsets))
		for sel, off := range offsets {
			entries = append(entries, entry{sel: fmt.Sprintf("0x%x", sel), offset: off})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].sel < entries[j].sel })

		tbl := ui.NewTable([]ui.Column{
			{Title: "SELECTOR", Width: 12},
			{Title: "OFFSET", Width: 8},
		})
		for _, e := range entries {
			tbl.AddRow(ui.Row{e.sel, strconv.Itoa(e.offset)})
		}
		fmt.Println(tbl.Render())
		return nil
	},
}

// resolveSelector reads the --sig/--selector flag pair.
func resolveSelector() ([4]byte, error) {
	switch {
	case offsetSigFlag != "" && offsetSelectorFlag != "":
		return [4]byte{}, fmt.Errorf("pass either --sig or --selector, not both")
	case offsetSigFlag != "":
		return engine.Selector(normalizeSignature(offsetSigFlag)), nil
	case offsetSelectorFlag != "":
		return registry.ParseSelector(offsetSelectorFlag)
	}
	return [4]byte{}, fmt.Errorf("one of --sig or --selector is required")
}

func init() {
	for _, c := range []*cobra.Command{offsetsSetCmd, offsetsClearCmd} {
		c.Flags().StringVar(&offsetSigFlag, "sig", "", "canonical function signature")
		c.Flags().StringVar(&offsetSelectorFlag, "selector", "", "raw 4-byte selector hex")
	}
	offsetsCmd.AddCommand(offsetsSetCmd, offsetsClearCmd, offsetsListCmd)
}
