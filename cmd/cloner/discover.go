package main

import (
	"fmt"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/discovery"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type discoverFlags struct {
	name           string
	connectionID   string
	sourceSubID    string
	targetSubID    string
	resourceGroups []string
	resourceTypes  []string
}

func (f *discoverFlags) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "A human-readable name for this discovery run.")
	flags.StringVar(&f.connectionID, "connection-id", "", "Identifies the source/target subscription pair (required).")
	flags.StringVar(&f.sourceSubID, "source-sub", "", "Source subscription id to enumerate (required).")
	flags.StringVar(&f.targetSubID, "target-sub", "", "Target subscription id this discovery is destined for (required).")
	flags.StringSliceVar(&f.resourceGroups, "resource-group", nil, "Restrict discovery to these resource groups (repeatable).")
	flags.StringSliceVar(&f.resourceTypes, "resource-type", nil, "Restrict discovery to these resource types (repeatable).")
}

func newDiscoverCmd(global *globalFlags) *cobra.Command {
	flags := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Enumerate a source subscription's resources and compute their dependency graph.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.connectionID == "" || flags.sourceSubID == "" || flags.targetSubID == "" {
				return fmt.Errorf("--connection-id, --source-sub, and --target-sub are required")
			}

			e, err := buildEnv(cmd.Context(), global)
			if err != nil {
				return err
			}

			if existing, err := e.disc.GetExistingDiscovery(cmd.Context(), flags.connectionID); err == nil && existing != nil {
				fmt.Printf("a completed discovery already exists for this connection: %s (started %s)\n",
					existing.ID, existing.StartedAt.Format("2006-01-02T15:04:05Z"))
				fmt.Println("re-run with a different --connection-id to force a fresh discovery")
				return nil
			}

			session, err := e.disc.Start(cmd.Context(), discoveryRequest(flags))
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}

			fmt.Printf("discovery %s: %s\n", session.ID, session.Status)
			fmt.Printf("  discovered=%d processed=%d\n", session.TotalDiscovered, session.Processed)
			if session.ErrorMsg != "" {
				fmt.Printf("  error=%s\n", session.ErrorMsg)
			}
			return nil
		},
	}
	flags.Bind(cmd.Flags())
	return cmd
}

func discoveryRequest(f *discoverFlags) discovery.StartRequest {
	return discovery.StartRequest{
		Name:         f.name,
		ConnectionID: f.connectionID,
		SourceSubID:  f.sourceSubID,
		TargetSubID:  f.targetSubID,
		Filters: model.ResourceFilters{
			ResourceGroups: f.resourceGroups,
			ResourceTypes:  f.resourceTypes,
		},
	}
}
