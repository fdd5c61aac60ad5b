package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lumivoice/ttsdeploy/internal/compose"
	"github.com/lumivoice/ttsdeploy/internal/resolver"
)

// NewConfigCommand creates the config command.
//
// The config command is the pure half of a deployment: it loads the
// descriptor, runs the resolver and prints the resulting instantiation
// plans without touching the Docker daemon. Resolution is idempotent, so
// the output is stable across invocations and suitable for diffing.
//
// Usage:
//
//	ttsdeploy config [-f FILE]
func NewConfigCommand(globalOpts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate the descriptor and print resolved plans",
		Long: `Validate the deployment descriptor and print the resolved instantiation
plans.

Every constraint violation is reported with the offending service's name.
Valid services still resolve and print; the command exits non-zero when
any service fails validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(globalOpts)
		},
	}

	return cmd
}

// runConfig executes the config command logic.
func runConfig(opts *GlobalOptions) error {
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

	if err := printPlans(os.Stdout, plans); err != nil {
		return err
	}

	if len(failedServices) > 0 {
		return fmt.Errorf("%d service(s) failed validation", len(failedServices))
	}

	return nil
}

// printPlans renders resolved plans as YAML.
func printPlans(w io.Writer, plans []resolver.Plan) error {
	if len(plans) == 0 {
		return nil
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()

	return enc.Encode(map[string][]resolver.Plan{"plans": plans})
}
