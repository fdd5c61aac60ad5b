package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewPsCommand creates the ps command.
//
// The ps command lists managed instances with their observed state and
// endpoint. State "ready" means the instance is running and its HTTP
// endpoint answers; "unhealthy" means it is running but unreachable.
//
// Usage:
//
//	ttsdeploy ps
func NewPsCommand(globalOpts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List deployed service instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(globalOpts)
		},
	}

	return cmd
}

// runPs executes the ps command logic.
func runPs(opts *GlobalOptions) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	instances, err := rt.List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTATE\tENDPOINT\tIMAGE\tCONTAINER")
	for _, instance := range instances {
		endpoint := instance.Endpoint
		if endpoint == "" {
			endpoint = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.12s\n",
			instance.Service, instance.State, endpoint, instance.Image, instance.ContainerID)
	}

	return w.Flush()
}
