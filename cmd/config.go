package cmd

import (
	"fmt"
	"strconv"

	"github.com/bitcloutplus/cli/pkg/state"
	"github.com/bitcloutplus/cli/pkg/table"
	"github.com/bitcloutplus/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configLongPostCmd = &cobra.Command{
	Use:       "long-post [true|false]",
	Short:     "Show or set whether long posts are enabled",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"true", "false"},
	RunE:      runConfigLongPost,
}

func init() {
	configCmd.AddCommand(configShowCmd, configLongPostCmd)
	rootCmd.AddCommand(configCmd)
}

// LongPostInput sets the flag when Value is non-nil.
type LongPostInput struct {
	Value *bool
}

// LongPost shows or sets the long post preference in store.
func LongPost(store state.Store, in LongPostInput) error {
	if in.Value != nil {
		if err := state.SetLongPost(store, *in.Value); err != nil {
			return err
		}
		pterm.Success.Printf("Long posts %s\n", enabledLabel(*in.Value))
		return nil
	}
	enabled, err := state.LongPost(store)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Long posts are %s\n", enabledLabel(enabled))
	return nil
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func runConfigLongPost(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	var in LongPostInput
	if len(args) == 1 {
		v, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("invalid value %q: use true or false", args[0])
		}
		in.Value = &v
	}
	return LongPost(a.store, in)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	active, _ := a.accounts.ActivePublicKey()
	rows := pterm.TableData{
		{"Setting", "Value"},
		{"Node URL", a.cfg.NodeURL},
		{"App URL", a.cfg.AppURL},
		{"Identity URL", a.identityURL()},
		{"State backend", a.cfg.StateBackend},
		{"State directory", a.cfg.StateDir},
		{"Bridge address", a.cfg.BridgeAddr},
		{"HTTP timeout", a.cfg.HTTPTimeout.String()},
		{"Active account", util.OrDash(active)},
	}
	table.PrintTableNoPad(rows, true)
	return nil
}
