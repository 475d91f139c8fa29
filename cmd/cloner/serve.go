package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newServeCmd runs the message-driven pipeline (spec §4.7) as a long-lived
// process: buildEnv wires the broker's five queues to the discovery and
// deployment engines via pkg/pipeline, and this command blocks until
// interrupted, mirroring the teacher's auth_serve.go signal-driven shutdown.
func newServeCmd(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker-driven discovery/deployment pipeline until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(cmd.Context(), global)
			if err != nil {
				return err
			}
			defer e.broker.Close()

			fmt.Println("pipeline running; publish to the resource-discovery queue to start a discovery, or Ctrl+C to stop")

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			<-c

			fmt.Println("shutting down")
			return nil
		},
	}
	return cmd
}
