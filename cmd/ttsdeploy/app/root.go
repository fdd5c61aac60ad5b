// Package app provides the command-line interface implementation for
// ttsdeploy.
//
// Commands are organized hierarchically with cobra: a root command carrying
// the global flags and one subcommand per deployment operation (up, down,
// ps, logs, config, version).
package app

import (
	"github.com/spf13/cobra"

	"github.com/lumivoice/ttsdeploy/internal/config"
	"github.com/lumivoice/ttsdeploy/internal/logger"
	"github.com/lumivoice/ttsdeploy/internal/runtime"
)

const (
	// cliName is the name of the CLI application
	cliName = "ttsdeploy"

	// cliDescription is the short description shown in help text
	cliDescription = "ttsdeploy - GPU-backed TTS inference service deployment"
)

// GlobalOptions holds options that are common to all commands
type GlobalOptions struct {
	// File is the deployment descriptor path
	File string

	// DockerHost is the Docker daemon address override
	DockerHost string

	// Verbose enables debug output
	Verbose bool
}

// NewTTSDeployCommand creates the root ttsdeploy command with all
// subcommands.
//
// The root command sets up global flags (descriptor path, Docker daemon
// address, verbosity) and registers the deployment subcommands.
//
// Returns:
//   - A configured cobra.Command ready for execution
func NewTTSDeployCommand() *cobra.Command {
	defaults := config.FromEnvironment()
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   cliName,
		Short: cliDescription,
		Long: `ttsdeploy deploys GPU-backed text-to-speech inference services onto a
Docker host from a declarative deployment descriptor.

The descriptor declares virtual networks and service instances: container
image, restart policy, port mappings, volume bindings, GPU device
reservations and the environment of the inference process. ttsdeploy
validates the document, resolves it into instantiation plans and applies
them through the Docker Engine API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetVerbose(opts.Verbose)
		},
	}

	// Add global flags
	cmd.PersistentFlags().StringVarP(&opts.File, "file", "f", defaults.File,
		"path to the deployment descriptor")
	cmd.PersistentFlags().StringVar(&opts.DockerHost, "docker-host", defaults.DockerHost,
		"Docker daemon address (default: resolved from environment)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"verbose output")

	// Add subcommands
	cmd.AddCommand(
		NewUpCommand(opts),
		NewDownCommand(opts),
		NewPsCommand(opts),
		NewLogsCommand(opts),
		NewConfigCommand(opts),
		NewVersionCommand(opts),
	)

	return cmd
}

// newRuntime connects to the Docker daemon configured by the global
// options.
func newRuntime(opts *GlobalOptions) (*runtime.DockerRuntime, error) {
	return runtime.NewDockerRuntime(opts.DockerHost)
}
