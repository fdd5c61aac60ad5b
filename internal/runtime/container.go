// Package runtime - container.go maps instantiation plans to engine
// container configuration.
//
// The mapping is pure: everything the engine needs is already resolved in
// the plan, so these functions perform no lookups and no I/O. They live in
// their own file so the translation can be tested without a daemon.
package runtime

import (
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/lumivoice/ttsdeploy/internal/compose"
	"github.com/lumivoice/ttsdeploy/internal/resolver"
)

// containerConfig builds the engine container configuration for a plan.
func containerConfig(plan *resolver.Plan) *container.Config {
	exposed, _ := portMaps(plan)

	return &container.Config{
		Image:        plan.Image,
		Cmd:          plan.Command,
		Env:          plan.Env,
		Tty:          plan.Tty,
		ExposedPorts: exposed,
		Labels:       plan.Labels,
	}
}

// hostConfig builds the engine host configuration for a plan: port
// bindings, bind mounts, device reservations, shared memory, privilege and
// the restart policy the engine honors for the instance's lifetime.
func hostConfig(plan *resolver.Plan) *container.HostConfig {
	_, bindings := portMaps(plan)

	mounts := make([]mount.Mount, 0, len(plan.Volumes))
	for _, vol := range plan.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   vol.Source,
			Target:   vol.Target,
			ReadOnly: vol.ReadOnly,
		})
	}

	requests := make([]container.DeviceRequest, 0, len(plan.Devices))
	for _, dev := range plan.Devices {
		requests = append(requests, container.DeviceRequest{
			DeviceIDs:    dev.DeviceIDs,
			Capabilities: [][]string{dev.Capabilities},
		})
	}

	return &container.HostConfig{
		Mounts:       mounts,
		PortBindings: bindings,
		ExtraHosts:   plan.ExtraHosts,
		Privileged:   plan.Privileged,
		ShmSize:      plan.ShmBytes,
		Resources: container.Resources{
			DeviceRequests: requests,
		},
		RestartPolicy: restartPolicy(plan.Restart),
	}
}

// networkingConfig attaches the instance to its declared networks, with
// the service name as alias so sibling instances reach it by name.
// A plan without networks returns nil and the engine default applies.
func networkingConfig(plan *resolver.Plan) *network.NetworkingConfig {
	if len(plan.Networks) == 0 {
		return nil
	}

	endpoints := make(map[string]*network.EndpointSettings, len(plan.Networks))
	for _, attachment := range plan.Networks {
		endpoints[attachment.Name] = &network.EndpointSettings{
			Aliases: []string{plan.Service},
		}
	}

	return &network.NetworkingConfig{EndpointsConfig: endpoints}
}

// portMaps converts the plan's port bindings into the engine's exposed-port
// set and host binding map.
func portMaps(plan *resolver.Plan) (nat.PortSet, nat.PortMap) {
	if len(plan.Ports) == 0 {
		return nil, nil
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, pb := range plan.Ports {
		port := nat.Port(fmt.Sprintf("%d/%s", pb.ContainerPort, pb.Protocol))
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   pb.HostIP,
			HostPort: fmt.Sprintf("%d", pb.HostPort),
		})
	}

	return exposed, bindings
}

// restartPolicy maps the descriptor restart policy onto the engine's.
// "always" means unbounded, unconditional re-creation, including after a
// host reboot.
func restartPolicy(p compose.RestartPolicy) container.RestartPolicy {
	switch p {
	case compose.RestartAlways:
		return container.RestartPolicy{Name: container.RestartPolicyAlways}
	case compose.RestartOnFailure:
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	default:
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}
	}
}
