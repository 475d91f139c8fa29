package main

import (
	"fmt"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/deployengine"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cloneFlags struct {
	name               string
	discoverySessionID string
	targetSubID        string
	mode               string
}

func (f *cloneFlags) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "A human-readable name for this deployment session.")
	flags.StringVar(&f.discoverySessionID, "discovery-session", "", "The completed discovery session to clone from (required).")
	flags.StringVar(&f.targetSubID, "target-sub", "", "The subscription to deploy into (required).")
	flags.StringVar(&f.mode, "mode", "incremental", "ARM deployment mode: incremental or complete.")
}

func (f *cloneFlags) deploymentMode() (model.DeploymentMode, error) {
	switch f.mode {
	case "incremental":
		return model.ModeIncremental, nil
	case "complete":
		return model.ModeComplete, nil
	default:
		return "", fmt.Errorf("--mode must be %q or %q, got %q", "incremental", "complete", f.mode)
	}
}

func newCloneCmd(global *globalFlags) *cobra.Command {
	flags := &cloneFlags{}
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Synthesize templates from a discovery session and deploy them into the target subscription.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.discoverySessionID == "" || flags.targetSubID == "" {
				return fmt.Errorf("--discovery-session and --target-sub are required")
			}
			mode, err := flags.deploymentMode()
			if err != nil {
				return err
			}

			e, err := buildEnv(cmd.Context(), global)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			session, err := e.deploy.CreateDeploymentSession(ctx, deployengine.CreateRequest{
				Name:               flags.name,
				DiscoverySessionID: flags.discoverySessionID,
				TargetSubID:        flags.targetSubID,
				Mode:               mode,
			})
			if err != nil {
				return fmt.Errorf("creating deployment session: %w", err)
			}
			fmt.Printf("deployment session %s created from discovery %s (%d templates)\n",
				session.ID, flags.discoverySessionID, session.TotalTemplates)

			validation, err := e.deploy.ValidateAllTemplates(ctx, session.ID)
			if err != nil {
				return fmt.Errorf("validating templates: %w", err)
			}
			for _, r := range validation.Results {
				status := "valid"
				if !r.IsValid {
					status = "invalid"
				}
				fmt.Printf("  template %s: %s\n", r.TemplateID, status)
				for _, msg := range r.Errors {
					fmt.Printf("    error: %s\n", msg)
				}
			}
			if !validation.AllValid {
				fmt.Println("one or more templates failed validation; deployment not started")
				return nil
			}

			if err := e.deploy.DeployAllTemplates(ctx, session.ID); err != nil {
				return fmt.Errorf("deploying templates: %w", err)
			}

			final, err := e.store.GetDeploymentSession(ctx, session.ID)
			if err != nil {
				return fmt.Errorf("reloading deployment session: %w", err)
			}
			fmt.Printf("deployment %s: %s (deployed=%d failed=%d)\n",
				final.ID, final.Status, final.Deployed, final.Failed)
			return nil
		},
	}
	flags.Bind(cmd.Flags())
	return cmd
}
