// Package runtime - state.go maps engine container state onto the
// instance state model and observes endpoint readiness.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/lumivoice/ttsdeploy/internal/logger"
)

// probeTimeout bounds the readiness probe against the inference server's
// HTTP endpoint. Model loading can take minutes; the probe only answers
// "is it accepting connections right now".
const probeTimeout = 2 * time.Second

// mapContainerState converts engine inspect data into the instance state
// model. This is the single place container states are interpreted.
//
// Returns the mapped state and an error message for failed containers.
func mapContainerState(inspect *container.InspectResponse) (InstanceState, string) {
	if inspect.State == nil {
		return StateUnknown, ""
	}

	if inspect.State.Running {
		if inspect.State.Restarting {
			// A restart loop under policy "always": the engine keeps
			// retrying, but the process never stays up.
			return StateError, "container is stuck in a restart loop"
		}
		return StateRunning, ""
	}

	switch inspect.State.Status {
	case "created":
		return StateCreated, ""
	case "exited", "dead":
		msg := fmt.Sprintf("container exited with code %d", inspect.State.ExitCode)
		if inspect.State.Error != "" {
			msg = fmt.Sprintf("%s: %s", msg, inspect.State.Error)
		}
		if inspect.State.ExitCode == 0 {
			return StateStopped, ""
		}
		return StateError, msg
	default:
		return StateUnknown, fmt.Sprintf("container in unexpected state: %s", inspect.State.Status)
	}
}

// refreshInstance synchronizes an instance with the actual container state
// and, for running instances with a published endpoint, distinguishes
// ready from unhealthy by probing the endpoint.
func (r *DockerRuntime) refreshInstance(ctx context.Context, instance *Instance) {
	inspect, err := r.client.ContainerInspect(ctx, instance.ContainerID)
	if err != nil {
		logger.Warn("Failed to inspect container %s (service %s): %v",
			shortID(instance.ContainerID), instance.Service, err)
		r.mu.Lock()
		instance.State = StateUnknown
		r.mu.Unlock()
		return
	}

	state, stateErr := mapContainerState(&inspect)

	if state == StateRunning && instance.Endpoint != "" {
		if probeEndpoint(ctx, instance.Endpoint) {
			state = StateReady
		} else {
			state = StateUnhealthy
		}
	}

	r.mu.Lock()
	instance.State = state
	instance.Error = stateErr
	r.mu.Unlock()
}

// probeEndpoint reports whether the instance's HTTP endpoint accepts
// requests. Any HTTP response counts as reachable; only connection-level
// failures mark the instance unhealthy.
func probeEndpoint(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return true
}

// endpointFromInspect derives the instance's local endpoint from the
// container's published ports, choosing the lowest host port for
// determinism.
func endpointFromInspect(inspect *container.InspectResponse) string {
	if inspect.NetworkSettings == nil {
		return ""
	}

	hostPort := 0
	for _, bindings := range inspect.NetworkSettings.Ports {
		for _, binding := range bindings {
			port, err := strconv.Atoi(binding.HostPort)
			if err != nil || port <= 0 {
				continue
			}
			if hostPort == 0 || port < hostPort {
				hostPort = port
			}
		}
	}
	if hostPort == 0 {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d", hostPort)
}

// sortInstances orders instances by service name for stable output.
func sortInstances(instances []*Instance) {
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Service < instances[j].Service
	})
}
