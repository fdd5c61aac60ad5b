// Package config provides configuration management for ttsdeploy.
//
// Configuration is deliberately small: the deployment document carries all
// service-level settings, so the tool itself only needs to know where the
// document lives and how to reach the Docker daemon. Precedence is
// flag > environment > default.
package config

import "os"

const (
	// DefaultFile is the default deployment descriptor path, resolved
	// relative to the working directory.
	DefaultFile = "deploy.yml"

	// FileEnvVar overrides the descriptor path.
	FileEnvVar = "TTSDEPLOY_FILE"

	// DockerHostEnvVar is the conventional Docker daemon address
	// variable, honored when no explicit override is given.
	DockerHostEnvVar = "DOCKER_HOST"
)

// Config holds the tool-level settings shared by all commands.
type Config struct {
	// File is the path to the deployment descriptor.
	File string

	// DockerHost is the Docker daemon address. Empty means the client
	// resolves it from the environment.
	DockerHost string
}

// FromEnvironment builds a Config from environment variables and defaults.
// Command-line flags override these values after parsing.
func FromEnvironment() *Config {
	file := os.Getenv(FileEnvVar)
	if file == "" {
		file = DefaultFile
	}

	return &Config{
		File:       file,
		DockerHost: os.Getenv(DockerHostEnvVar),
	}
}
