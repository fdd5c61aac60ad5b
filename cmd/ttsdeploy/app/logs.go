package app

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// LogsOptions holds options for the logs command
type LogsOptions struct {
	*GlobalOptions

	// Follow streams new log lines as they are produced
	Follow bool
}

// NewLogsCommand creates the logs command.
//
// Usage:
//
//	ttsdeploy logs SERVICE [-F]
//
// Examples:
//
//	ttsdeploy logs f5-tts
//	ttsdeploy logs f5-tts -F
func NewLogsCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &LogsOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "logs SERVICE",
		Short: "Show logs of a deployed service instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Follow, "follow", "F", false,
		"follow new log output")

	return cmd
}

// runLogs executes the logs command logic.
func runLogs(opts *LogsOptions, service string) error {
	rt, err := newRuntime(opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	stream, err := rt.Logs(context.Background(), service, opts.Follow)
	if err != nil {
		return err
	}
	defer stream.Close()

	_, err = io.Copy(os.Stdout, stream)
	return err
}
