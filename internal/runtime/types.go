// Package runtime provides the host container runtime adapter.
//
// The resolver produces pure instantiation plans; this package is the only
// component with side effects. Its contract with the rest of the tool is
// small: apply a plan and get back a running instance handle or a startup
// failure, and observe instance status thereafter. Restart policies are
// honored by the engine itself, not re-implemented here.
package runtime

import (
	"context"
	"time"

	"github.com/lumivoice/ttsdeploy/internal/resolver"
)

// Runtime is the contract of a host container runtime.
type Runtime interface {
	// Apply creates and starts an instance from a fully-resolved plan.
	Apply(ctx context.Context, plan *resolver.Plan) (*Instance, error)

	// Stop gracefully stops a running instance. The container is
	// preserved for inspection and restart.
	Stop(ctx context.Context, service string) error

	// Remove stops and removes an instance. Bind-mounted host
	// directories outlive the instance and are never removed.
	Remove(ctx context.Context, service string) error

	// Get returns the current state of one managed instance.
	Get(ctx context.Context, service string) (*Instance, error)

	// List returns all managed instances.
	List(ctx context.Context) ([]*Instance, error)

	// Logs streams an instance's logs. The returned stream must be
	// closed by the caller.
	Logs(ctx context.Context, service string, follow bool) (LogStream, error)
}

// Instance represents one deployed service instance.
type Instance struct {
	// Service is the service name from the plan.
	Service string

	// ContainerID is the engine-assigned container identity.
	ContainerID string

	// Image is the image the instance runs.
	Image string

	// State is the last observed instance state.
	State InstanceState

	// Error holds failure details when State is StateError.
	Error string

	// Endpoint is the local HTTP endpoint of the instance's first
	// published port, empty when none is published.
	Endpoint string

	// CreatedAt and StartedAt are engine-reported timestamps.
	CreatedAt time.Time
	StartedAt time.Time
}

// InstanceState represents the observed state of an instance.
type InstanceState string

const (
	StateCreated   InstanceState = "created"
	StateStarting  InstanceState = "starting"
	StateRunning   InstanceState = "running"
	StateReady     InstanceState = "ready"     // Running and endpoint is accessible
	StateUnhealthy InstanceState = "unhealthy" // Running but endpoint is not accessible
	StateStopped   InstanceState = "stopped"
	StateError     InstanceState = "error"
	StateUnknown   InstanceState = "unknown"
)

// LogStream provides access to instance logs.
type LogStream interface {
	Read(p []byte) (n int, err error)
	Close() error
}
