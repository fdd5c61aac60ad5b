package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/lumivoice/ttsdeploy/internal/logger"
	"github.com/lumivoice/ttsdeploy/internal/resolver"
)

// DockerRuntime applies instantiation plans through the Docker Engine API.
//
// The runtime tracks the instances it manages in memory, keyed by service
// name, and restores that tracking from container labels after a tool
// restart. All methods are safe for concurrent use; sibling instances may
// be applied concurrently and no ordering between their startup completion
// is assumed.
type DockerRuntime struct {
	client    *client.Client
	mu        sync.RWMutex
	instances map[string]*Instance
}

var _ Runtime = (*DockerRuntime)(nil)

// NewDockerRuntime creates a runtime connected to the local Docker daemon.
//
// The client honors DOCKER_HOST and related environment variables unless
// an explicit host override is given. Daemon connectivity is verified with
// a short ping before the runtime is returned.
//
// Parameters:
//   - host: Docker daemon address override (empty for environment-based)
//
// Returns:
//   - Connected runtime with existing managed containers loaded
//   - Error if the daemon is unreachable
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("Docker daemon is not accessible: %w", err)
	}

	r := &DockerRuntime{
		client:    cli,
		instances: make(map[string]*Instance),
	}

	if err := r.LoadExistingContainers(context.Background()); err != nil {
		logger.Warn("Failed to load existing containers: %v", err)
		// Non-fatal: new instances can still be applied
	}

	logger.Debug("Docker runtime initialized (%d managed instance(s) found)", len(r.instances))

	return r, nil
}

// Close releases the Docker client connection.
func (r *DockerRuntime) Close() error {
	return r.client.Close()
}

// Apply creates and starts an instance from a fully-resolved plan.
//
// The sequence is: ensure every declared network exists, ensure the image
// is present (pulling on miss), create the container, start it. Failures
// reported by the engine are relayed verbatim, classified into the
// deployment error taxonomy, and stop only this plan; whether the engine
// retries afterwards is governed by the plan's restart policy.
func (r *DockerRuntime) Apply(ctx context.Context, plan *resolver.Plan) (*Instance, error) {
	r.mu.RLock()
	_, exists := r.instances[plan.Service]
	r.mu.RUnlock()
	if exists {
		return nil, &resolver.ServiceError{
			Service:    plan.Service,
			Kind:       resolver.ErrResourceUnavailable,
			Constraint: "an instance with this name is already deployed",
		}
	}

	for _, attachment := range plan.Networks {
		if err := r.ensureNetwork(ctx, attachment.Name, attachment.Driver); err != nil {
			return nil, relay(plan.Service, "network creation failed", err)
		}
	}

	if err := r.ensureImage(ctx, plan.Image); err != nil {
		return nil, &resolver.ServiceError{
			Service:    plan.Service,
			Kind:       resolver.ErrImageResolution,
			Constraint: fmt.Sprintf("image %s cannot be obtained", plan.Image),
			Cause:      err,
		}
	}

	logger.Info("Creating container for service %s (image %s)", plan.Service, plan.Image)

	resp, err := r.client.ContainerCreate(
		ctx,
		containerConfig(plan),
		hostConfig(plan),
		networkingConfig(plan),
		nil, // platform
		plan.Service,
	)
	if err != nil {
		return nil, relay(plan.Service, "container creation failed", err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, relay(plan.Service, "container start failed", err)
	}

	instance := &Instance{
		Service:     plan.Service,
		ContainerID: resp.ID,
		Image:       plan.Image,
		State:       StateStarting,
		Endpoint:    plan.Endpoint(),
		CreatedAt:   time.Now(),
		StartedAt:   time.Now(),
	}

	r.mu.Lock()
	r.instances[plan.Service] = instance
	r.mu.Unlock()

	logger.Info("Service %s started (container %s)", plan.Service, shortID(resp.ID))

	return instance, nil
}

// Stop gracefully stops a running instance.
//
// The engine sends SIGTERM and waits up to 30 seconds before SIGKILL,
// giving the inference server time to finish in-flight synthesis. The
// container is preserved for inspection; use Remove to destroy it.
func (r *DockerRuntime) Stop(ctx context.Context, service string) error {
	instance, err := r.lookup(service)
	if err != nil {
		return err
	}

	logger.Info("Stopping service %s (container %s)", service, shortID(instance.ContainerID))

	timeout := 30
	if err := r.client.ContainerStop(ctx, instance.ContainerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	r.mu.Lock()
	instance.State = StateStopped
	r.mu.Unlock()

	return nil
}

// Remove destroys an instance's container.
//
// Anonymous volumes are removed with it; bind-mounted host directories are
// owned by the host and always outlive the instance.
func (r *DockerRuntime) Remove(ctx context.Context, service string) error {
	instance, err := r.lookup(service)
	if err != nil {
		return err
	}

	logger.Info("Removing service %s (container %s)", service, shortID(instance.ContainerID))

	err = r.client.ContainerRemove(ctx, instance.ContainerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	r.mu.Lock()
	delete(r.instances, service)
	r.mu.Unlock()

	return nil
}

// Get returns the current state of one managed instance, refreshed against
// the actual container state and endpoint reachability.
func (r *DockerRuntime) Get(ctx context.Context, service string) (*Instance, error) {
	instance, err := r.lookup(service)
	if err != nil {
		return nil, err
	}

	r.refreshInstance(ctx, instance)

	return instance, nil
}

// List returns all managed instances, refreshed against actual container
// state. The result is a snapshot in sorted service order.
func (r *DockerRuntime) List(ctx context.Context) ([]*Instance, error) {
	r.mu.RLock()
	instances := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.mu.RUnlock()

	for _, inst := range instances {
		r.refreshInstance(ctx, inst)
	}

	sortInstances(instances)

	return instances, nil
}

// Logs streams container logs for an instance. The returned stream must be
// closed by the caller.
func (r *DockerRuntime) Logs(ctx context.Context, service string, follow bool) (LogStream, error) {
	instance, err := r.lookup(service)
	if err != nil {
		return nil, err
	}

	reader, err := r.client.ContainerLogs(ctx, instance.ContainerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: true,
		Tail:       "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get container logs: %w", err)
	}

	return reader, nil
}

// LoadExistingContainers discovers managed containers from previous runs
// and registers them in the tracking map, so the tool resumes managing
// instances after a restart. Individual container failures are logged and
// skipped.
func (r *DockerRuntime) LoadExistingContainers(ctx context.Context) error {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=true", resolver.LabelManaged)),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range containers {
		service := c.Labels[resolver.LabelService]
		if service == "" {
			logger.Warn("Skipping container %s: missing %s label", shortID(c.ID), resolver.LabelService)
			continue
		}

		inspect, err := r.client.ContainerInspect(ctx, c.ID)
		if err != nil {
			logger.Warn("Failed to inspect container %s (service %s): %v", shortID(c.ID), service, err)
			continue
		}

		state, stateErr := mapContainerState(&inspect)

		r.instances[service] = &Instance{
			Service:     service,
			ContainerID: c.ID,
			Image:       c.Image,
			State:       state,
			Error:       stateErr,
			Endpoint:    endpointFromInspect(&inspect),
		}

		logger.Debug("Restored instance %s from container %s (%s)", service, shortID(c.ID), state)
	}

	return nil
}

// ensureNetwork creates the named network when it does not exist yet.
// Creation is idempotent across concurrent appliers: a conflict from a
// sibling creating the same network first is not an error.
func (r *DockerRuntime) ensureNetwork(ctx context.Context, name, driver string) error {
	networks, err := r.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	for _, n := range networks {
		// The name filter matches substrings; require an exact match.
		if n.Name == name {
			return nil
		}
	}

	logger.Info("Creating network %s (driver %s)", name, driver)

	_, err = r.client.NetworkCreate(ctx, name, network.CreateOptions{Driver: driver})
	if err != nil && !errdefs.IsConflict(err) {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}

	return nil
}

// ensureImage pulls the image when it is not present locally.
func (r *DockerRuntime) ensureImage(ctx context.Context, ref string) error {
	_, err := r.client.ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}

	logger.Info("Pulling image %s", ref)

	reader, err := r.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()

	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("image pull interrupted: %w", err)
	}

	return nil
}

// lookup fetches a tracked instance by service name.
func (r *DockerRuntime) lookup(service string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[service]
	if !ok {
		return nil, fmt.Errorf("no managed instance for service %q", service)
	}
	return instance, nil
}

// relay classifies an engine failure into the deployment error taxonomy
// and wraps it with the offending service's name, without rewording the
// engine's own message.
func relay(service, constraint string, err error) *resolver.ServiceError {
	kind := resolver.ErrRuntimeStartup
	switch {
	case errdefs.IsNotFound(err):
		kind = resolver.ErrImageResolution
	case errdefs.IsConflict(err), isPortInUse(err), isDeviceUnavailable(err):
		kind = resolver.ErrResourceUnavailable
	}

	return &resolver.ServiceError{
		Service:    service,
		Kind:       kind,
		Constraint: constraint,
		Cause:      err,
	}
}

// isPortInUse matches the engine's report of a host port claimed by a
// process outside the document. The engine has no typed error for this.
func isPortInUse(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "port is already allocated") ||
		strings.Contains(msg, "address already in use")
}

// isDeviceUnavailable matches the engine's report of an unsatisfiable
// device reservation (missing driver or unknown device index).
func isDeviceUnavailable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "could not select device driver") ||
		strings.Contains(msg, "unknown or invalid value") && strings.Contains(msg, "device")
}

// shortID abbreviates a container ID for log output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
