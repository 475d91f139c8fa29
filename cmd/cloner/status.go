package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type statusFlags struct {
	discoverySessionID string
	deploymentSessionID string
}

func (f *statusFlags) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.discoverySessionID, "discovery-session", "", "Print the status of this discovery session.")
	flags.StringVar(&f.deploymentSessionID, "deployment-session", "", "Print the status of this deployment session.")
}

func newStatusCmd(global *globalFlags) *cobra.Command {
	flags := &statusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current status of a discovery or deployment session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.discoverySessionID == "" && flags.deploymentSessionID == "" {
				return fmt.Errorf("one of --discovery-session or --deployment-session is required")
			}

			e, err := buildEnv(cmd.Context(), global)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if flags.discoverySessionID != "" {
				s, err := e.store.GetDiscoverySession(ctx, flags.discoverySessionID)
				if err != nil {
					return fmt.Errorf("loading discovery session: %w", err)
				}
				fmt.Printf("discovery %s: %s (discovered=%d processed=%d)\n",
					s.ID, s.Status, s.TotalDiscovered, s.Processed)
				if s.ErrorMsg != "" {
					fmt.Printf("  error=%s\n", s.ErrorMsg)
				}
			}

			if flags.deploymentSessionID != "" {
				s, err := e.store.GetDeploymentSession(ctx, flags.deploymentSessionID)
				if err != nil {
					return fmt.Errorf("loading deployment session: %w", err)
				}
				fmt.Printf("deployment %s: %s (deployed=%d failed=%d of %d)\n",
					s.ID, s.Status, s.Deployed, s.Failed, s.TotalTemplates)

				templates, err := e.store.TemplatesBySession(ctx, s.ID)
				if err != nil {
					return fmt.Errorf("loading templates: %w", err)
				}
				for _, t := range templates {
					fmt.Printf("  template %s (level %d, rg %s): %s\n", t.ID, t.DependencyLevel, t.ResourceGroup, t.Status)
				}
			}
			return nil
		},
	}
	flags.Bind(cmd.Flags())
	return cmd
}
