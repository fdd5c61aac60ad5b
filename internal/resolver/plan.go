// Package resolver - plan.go defines the instantiation plan model.
package resolver

import "github.com/lumivoice/ttsdeploy/internal/compose"

// PortBinding is one resolved (host-port, container-port) pair.
type PortBinding struct {
	// HostIP is the host interface to bind. Empty means all interfaces.
	HostIP string

	// HostPort is the port claimed on the host. Host ports are
	// exclusively claimed per instance for the instance's lifetime.
	HostPort int

	// ContainerPort is the port the inference process listens on.
	ContainerPort int

	// Protocol is "tcp" or "udp".
	Protocol string
}

// VolumeBinding is one resolved (host-path, container-path) bind mount.
// Host paths have host lifetime: their contents outlive the instance.
type VolumeBinding struct {
	Source   string
	Target   string
	ReadOnly bool
}

// DeviceRequest is a resolved claim on host accelerator devices.
type DeviceRequest struct {
	// Capabilities the host runtime must provide. Example: ["gpu"]
	Capabilities []string

	// DeviceIDs restricts which physical devices the instance may use.
	// Never empty for a resolved plan.
	DeviceIDs []string
}

// Plan is the fully-resolved, ready-to-execute description of a service
// instance. It contains every field the host runtime needs to create the
// container with no further configuration lookups.
//
// Plans are value types with deterministic field contents: environment is
// sorted, ordering of ports/volumes follows the document, and nothing in a
// plan depends on wall-clock time or hidden counters. Resolving the same
// document twice therefore yields identical plans.
type Plan struct {
	// Service is the service name from the document. It doubles as the
	// container name and the network alias other instances on the same
	// network use to reach this one.
	Service string

	// Image is the validated container image reference.
	Image string

	// Command is the command-line entry point, empty to use the image
	// default.
	Command []string

	// Restart is the restart policy the host runtime must honor after
	// the instance is created.
	Restart compose.RestartPolicy

	// Privileged grants extended host privileges. A privileged plan with
	// a GPU request requires the host runtime to expose the reserved
	// device indices before the instance starts.
	Privileged bool

	// Tty allocates a pseudo-terminal.
	Tty bool

	// ShmBytes is the shared-memory size in bytes, 0 for the runtime
	// default.
	ShmBytes int64

	// Env is the injected environment as sorted KEY=value pairs.
	Env []string

	// Ports are the resolved port bindings in document order.
	Ports []PortBinding

	// Volumes are the resolved bind mounts in document order.
	Volumes []VolumeBinding

	// Networks are the networks to attach, with their resolved drivers.
	Networks []NetworkAttachment

	// ExtraHosts are additional /etc/hosts entries in "HOST:ADDRESS"
	// form, including the host-gateway alias when the ASR endpoint
	// requires it.
	ExtraHosts []string

	// Devices are the accelerator claims of the instance.
	Devices []DeviceRequest

	// Labels identify the instance as managed by this tool.
	Labels map[string]string
}

// NetworkAttachment is one resolved network the instance attaches to.
type NetworkAttachment struct {
	Name   string
	Driver string
}

// Endpoint returns the local HTTP endpoint of the plan's first published
// port, or "" when the plan publishes no ports.
func (p *Plan) Endpoint() string {
	if len(p.Ports) == 0 {
		return ""
	}
	return endpointForPort(p.Ports[0].HostPort)
}
