// Package compose provides the typed deployment document model for ttsdeploy.
//
// A deployment document is a declarative YAML file describing one or more
// GPU-backed inference service instances and the virtual networks they
// attach to. The document is parsed into tagged records so that every
// validation rule can be enforced at resolve time instead of surfacing as
// an opaque runtime failure.
//
// Recognized top-level sections are exactly "networks" and "services".
package compose

import "sort"

// RestartPolicy controls how the host runtime reacts when a service
// instance exits.
type RestartPolicy string

const (
	// RestartAlways re-creates the instance unconditionally, including
	// after a host reboot. Retries are unbounded; this is a deliberate
	// availability trade-off for a single always-on service.
	RestartAlways RestartPolicy = "always"

	// RestartOnFailure restarts the instance only after a non-zero exit.
	RestartOnFailure RestartPolicy = "on-failure"

	// RestartNever leaves the instance stopped once it exits.
	RestartNever RestartPolicy = "never"
)

// Valid reports whether the policy is one of the recognized values.
// An empty policy is valid and treated as RestartNever.
func (p RestartPolicy) Valid() bool {
	switch p {
	case "", RestartAlways, RestartOnFailure, RestartNever:
		return true
	}
	return false
}

// Network defines a named virtual network that service instances attach to.
// Instances on the same network are mutually reachable by service name.
type Network struct {
	// Driver is the network driver. Only "bridge" is used by the
	// reference descriptors; an empty driver defaults to "bridge".
	Driver string `yaml:"driver,omitempty"`
}

// DeviceReservation is a claim on host accelerator resources.
//
// The reservation names a capability (here always "gpu") and the physical
// device indices the instance may use. Device indices are exclusively
// claimed per instance for the instance's lifetime.
type DeviceReservation struct {
	// Capabilities lists the required device capabilities.
	// Example: ["gpu"]
	Capabilities []string `yaml:"capabilities"`

	// DeviceIDs restricts which physical devices the instance may use.
	// Example: ["0"] or ["2"]
	DeviceIDs []string `yaml:"device_ids,omitempty"`
}

// Reservations carries the device reservations of a deploy block.
type Reservations struct {
	Devices []DeviceReservation `yaml:"devices,omitempty"`
}

// Resources carries the resource reservations of a deploy block.
type Resources struct {
	Reservations Reservations `yaml:"reservations,omitempty"`
}

// Deploy carries the deployment-time resource requirements of a service.
type Deploy struct {
	Resources Resources `yaml:"resources,omitempty"`
}

// Service describes one deployable, independently restartable unit wrapping
// an inference process.
type Service struct {
	// Image is the container image reference.
	// Example: "f5-tts:v1.1.7"
	Image string `yaml:"image"`

	// Restart is the restart policy (always | on-failure | never).
	Restart RestartPolicy `yaml:"restart,omitempty"`

	// Privileged grants the instance extended host privileges.
	// Required together with a GPU reservation when the runtime must
	// expose the reserved device nodes directly.
	Privileged bool `yaml:"privileged,omitempty"`

	// Tty allocates a pseudo-terminal for the instance.
	Tty bool `yaml:"tty,omitempty"`

	// ShmSize is the shared-memory size as a human-readable string.
	// Example: "8g"
	ShmSize string `yaml:"shm_size,omitempty"`

	// Command is the command-line entry point of the inference process.
	// Example: ["python", "src/f5_tts/infer/infer_fastapi.py"]
	Command []string `yaml:"command,omitempty"`

	// Ports maps host ports to container ports in "HOST:CONTAINER" form.
	// Host ports must be unique across all services in the document.
	Ports []string `yaml:"ports,omitempty"`

	// Volumes binds pre-existing host directories into the container in
	// "HOST:CONTAINER[:ro]" form. Volumes have host lifetime; they are
	// never owned or destroyed by the instance.
	Volumes []string `yaml:"volumes,omitempty"`

	// Environment is injected at instance start. Values are passed
	// through to the inference process and not interpreted here, with
	// two exceptions: CUDA_VISIBLE_DEVICES is cross-checked against the
	// GPU reservation, and ASR_URL must resolve from inside the
	// container network namespace.
	Environment map[string]string `yaml:"environment,omitempty"`

	// ExtraHosts adds entries to the container's /etc/hosts in
	// "HOST:ADDRESS" form. "host-gateway" is accepted as an address
	// alias for the host.
	ExtraHosts []string `yaml:"extra_hosts,omitempty"`

	// Networks lists the networks the instance attaches to. Every name
	// must reference a declared network.
	Networks []string `yaml:"networks,omitempty"`

	// Deploy carries device reservations.
	Deploy Deploy `yaml:"deploy,omitempty"`
}

// Document is the root of a deployment descriptor.
type Document struct {
	Networks map[string]Network `yaml:"networks,omitempty"`
	Services map[string]Service `yaml:"services"`
}

// ServiceNames returns the service names in deterministic (sorted) order.
// Plan ordering and error reporting both follow this order so that
// resolution output is reproducible.
func (d *Document) ServiceNames() []string {
	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GPUReservations returns the service's device reservations that request
// the "gpu" capability.
func (s *Service) GPUReservations() []DeviceReservation {
	var out []DeviceReservation
	for _, res := range s.Deploy.Resources.Reservations.Devices {
		for _, capability := range res.Capabilities {
			if capability == "gpu" {
				out = append(out, res)
				break
			}
		}
	}
	return out
}
