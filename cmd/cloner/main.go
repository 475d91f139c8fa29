// Command cloner is the operator CLI for the subscription cloning engine:
// it drives discovery and clone-deployment end to end against a live Azure
// subscription. Structured as a cobra root command with per-command flag
// structs bound in a Bind method, the shape the teacher's cmd package uses
// throughout (provision.go's provisionFlags.Bind), generalized here without
// the teacher's full actions/IoC resolver framework, which exists to wire
// dozens of azd commands against a shared container; a two-engine CLI wires
// its dependencies directly in main instead (see DESIGN.md).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	global := &globalFlags{}

	root := &cobra.Command{
		Use:           "cloner",
		Short:         "Clone an Azure subscription's resources into another subscription.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	global.Bind(root.PersistentFlags())

	root.AddCommand(newDiscoverCmd(global))
	root.AddCommand(newCloneCmd(global))
	root.AddCommand(newStatusCmd(global))
	root.AddCommand(newServeCmd(global))
	return root
}

// globalFlags are bound on the root command's persistent flag set and
// inherited by every subcommand, mirroring internal.GlobalCommandOptions'
// role in the teacher's cmd package.
type globalFlags struct {
	configPath string
}

func (g *globalFlags) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&g.configPath, "config", "", "Path to a YAML config file overlaying the default tunables.")
}

// loadOptions resolves the effective cloneconfig.Options: the YAML overlay
// at configPath when set, otherwise cloneconfig.Default().
func (g *globalFlags) loadOptions() (cloneconfig.Options, error) {
	if g.configPath == "" {
		return cloneconfig.Default(), nil
	}
	return cloneconfig.LoadFile(g.configPath)
}
