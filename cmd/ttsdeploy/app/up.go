package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumivoice/ttsdeploy/internal/compose"
	"github.com/lumivoice/ttsdeploy/internal/logger"
	"github.com/lumivoice/ttsdeploy/internal/resolver"
)

// UpOptions holds options for the up command
type UpOptions struct {
	*GlobalOptions

	// DryRun resolves and prints plans without touching the daemon
	DryRun bool
}

// NewUpCommand creates the up command.
//
// The up command loads the deployment descriptor, resolves it into
// instantiation plans and applies them. Configuration errors are reported
// per service and do not block valid siblings in the same document.
//
// Usage:
//
//	ttsdeploy up [SERVICE...] [-f FILE] [--dry-run]
//
// Examples:
//
//	ttsdeploy up
//	ttsdeploy up f5-tts
//	ttsdeploy up -f deploy-01.yml --dry-run
func NewUpCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &UpOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "up [SERVICE...]",
		Short: "Deploy services from the deployment descriptor",
		Long: `Deploy the services declared in the deployment descriptor.

The document is validated and resolved first; services that violate a
constraint are reported and skipped, valid services are still deployed.
With SERVICE arguments, only the named services are applied.`,
		Example: `  # Deploy every service in deploy.yml
  ttsdeploy up

  # Deploy one service from a specific descriptor
  ttsdeploy up f5-tts -f deploy.yml

  # Validate and show what would be deployed
  ttsdeploy up --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false,
		"resolve and print plans without deploying")

	return cmd
}

// runUp executes the up command logic.
func runUp(opts *UpOptions, services []string) error {
	doc, err := compose.LoadFile(opts.File)
	if err != nil {
		return err
	}

	plans, resolveErrs := resolver.Resolve(doc)
	failedServices := make(map[string]struct{})
	for _, resolveErr := range resolveErrs {
		fmt.Fprintf(os.Stderr, "Error: %v\n", resolveErr)
		failedServices[resolveErr.Service] = struct{}{}
	}

	plans, err = selectPlans(plans, services)
	if err != nil {
		return err
	}

	if opts.DryRun {
		if err := printPlans(os.Stdout, plans); err != nil {
			return err
		}
		return exitStatus(len(failedServices), 0)
	}

	rt, err := newRuntime(opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	applyFailures := 0
	for i := range plans {
		plan := &plans[i]
		instance, err := rt.Apply(ctx, plan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			applyFailures++
			continue
		}
		logger.Info("Service %s is up (endpoint %s)", instance.Service, instance.Endpoint)
	}

	return exitStatus(len(failedServices), applyFailures)
}

// selectPlans filters resolved plans down to the requested services.
// Requesting a service the resolver produced no plan for is an error.
func selectPlans(plans []resolver.Plan, services []string) ([]resolver.Plan, error) {
	if len(services) == 0 {
		return plans, nil
	}

	byName := make(map[string]resolver.Plan, len(plans))
	for _, plan := range plans {
		byName[plan.Service] = plan
	}

	selected := make([]resolver.Plan, 0, len(services))
	for _, name := range services {
		plan, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no resolvable service %q in the document", name)
		}
		selected = append(selected, plan)
	}

	return selected, nil
}

// exitStatus folds per-service failure counts into the command result.
func exitStatus(configErrs, applyErrs int) error {
	switch {
	case configErrs > 0 && applyErrs > 0:
		return fmt.Errorf("%d service(s) failed validation, %d failed to deploy", configErrs, applyErrs)
	case configErrs > 0:
		return fmt.Errorf("%d service(s) failed validation", configErrs)
	case applyErrs > 0:
		return fmt.Errorf("%d service(s) failed to deploy", applyErrs)
	}
	return nil
}
