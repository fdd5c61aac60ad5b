package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumivoice/ttsdeploy/internal/logger"
)

// DownOptions holds options for the down command
type DownOptions struct {
	*GlobalOptions

	// StopOnly stops instances without removing their containers
	StopOnly bool
}

// NewDownCommand creates the down command.
//
// The down command stops and removes managed service instances. Volume
// bindings point at host directories with host lifetime, so their contents
// always survive removal.
//
// Usage:
//
//	ttsdeploy down [SERVICE...] [--stop-only]
//
// Examples:
//
//	ttsdeploy down
//	ttsdeploy down f5-tts
func NewDownCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &DownOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "down [SERVICE...]",
		Short: "Stop and remove deployed services",
		Long: `Stop and remove managed service instances.

Without arguments every managed instance is taken down. Bind-mounted host
directories (synthesis results, error logs) are never touched.`,
		Example: `  # Take down everything ttsdeploy manages
  ttsdeploy down

  # Stop one service but keep its container for inspection
  ttsdeploy down f5-tts --stop-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDown(opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.StopOnly, "stop-only", false,
		"stop instances without removing their containers")

	return cmd
}

// runDown executes the down command logic.
func runDown(opts *DownOptions, services []string) error {
	rt, err := newRuntime(opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()

	if len(services) == 0 {
		instances, err := rt.List(ctx)
		if err != nil {
			return err
		}
		for _, instance := range instances {
			services = append(services, instance.Service)
		}
	}

	if len(services) == 0 {
		logger.Info("No managed instances to take down")
		return nil
	}

	failures := 0
	for _, service := range services {
		var err error
		if opts.StopOnly {
			err = rt.Stop(ctx, service)
		} else {
			err = rt.Remove(ctx, service)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d service(s) failed to come down", failures)
	}

	return nil
}
