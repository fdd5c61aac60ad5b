// Package resolver transforms a validated deployment document into concrete
// instantiation plans.
//
// Resolution is a pure, single-pass transform: it performs no I/O, holds no
// state between calls, and needs no concurrency of its own. All blocking
// work (image pulls, device acquisition, network creation) belongs to the
// host container runtime, which consumes the plans this package produces.
//
// Validation follows partial-failure isolation: every violation is reported
// per service, and one invalid service never blocks resolution of its
// siblings in the same document.
package resolver

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/distribution/reference"
	"github.com/docker/go-connections/nat"
	units "github.com/docker/go-units"

	"github.com/lumivoice/ttsdeploy/internal/compose"
	"github.com/lumivoice/ttsdeploy/internal/device"
)

const (
	// LabelService identifies the service a managed container belongs to.
	LabelService = "ttsdeploy.service"

	// LabelManaged marks a container as created by this tool.
	LabelManaged = "ttsdeploy.managed"

	// hostGatewayAlias is the conventional hostname resolving to the
	// container host, used by the ASR endpoint URL.
	hostGatewayAlias = "host.docker.internal"

	// hostGatewayAddress is the runtime-provided address token that maps
	// the alias to the host's gateway IP.
	hostGatewayAddress = "host-gateway"

	defaultNetworkDriver = "bridge"
)

// Resolve validates the document and produces one instantiation plan per
// valid service.
//
// Plans are returned in sorted service-name order. Services that violate a
// constraint produce no plan and one or more entries in the returned error
// slice instead; cross-service violations (duplicate host port, duplicate
// exclusive device index) produce an error naming each offending service.
//
// Resolution is idempotent: the same document always yields identical
// plans and identical errors.
func Resolve(doc *compose.Document) ([]Plan, []*ServiceError) {
	names := doc.ServiceNames()

	errsByService := make(map[string][]*ServiceError)
	plansByService := make(map[string]*Plan)

	// Claims on host-exclusive resources across the document, keyed by
	// the claimed value, holding the claiming services in name order.
	portClaims := make(map[int][]string)
	deviceClaims := make(map[string][]string)

	for _, name := range names {
		svc := doc.Services[name]
		plan, errs := resolveService(name, &svc, doc)
		if len(errs) > 0 {
			errsByService[name] = append(errsByService[name], errs...)
			continue
		}

		for _, pb := range plan.Ports {
			portClaims[pb.HostPort] = append(portClaims[pb.HostPort], name)
		}
		for _, req := range plan.Devices {
			for _, id := range req.DeviceIDs {
				deviceClaims[id] = append(deviceClaims[id], name)
			}
		}

		plansByService[name] = plan
	}

	// Host ports and device indices are exclusively claimed per
	// instance; two services in one document claiming the same value is
	// a configuration error on every claimant. Claims are visited in
	// sorted order so error output is as reproducible as the plans.
	for _, port := range sortedPortKeys(portClaims) {
		claimants := portClaims[port]
		if len(claimants) < 2 {
			continue
		}
		for _, name := range claimants {
			others := excluding(claimants, name)
			errsByService[name] = append(errsByService[name],
				configErr(name, "host port %d is also claimed by service %s",
					port, strings.Join(others, ", ")))
			delete(plansByService, name)
		}
	}
	for _, id := range sortedDeviceKeys(deviceClaims) {
		claimants := deviceClaims[id]
		if len(claimants) < 2 {
			continue
		}
		for _, name := range claimants {
			others := excluding(claimants, name)
			errsByService[name] = append(errsByService[name],
				configErr(name, "device index %s is also claimed by service %s",
					id, strings.Join(others, ", ")))
			delete(plansByService, name)
		}
	}

	var plans []Plan
	var errs []*ServiceError
	for _, name := range names {
		if plan, ok := plansByService[name]; ok {
			plans = append(plans, *plan)
		}
		errs = append(errs, errsByService[name]...)
	}

	return plans, errs
}

// resolveService validates one service and builds its plan. All violations
// are collected so a single pass reports every problem with the service,
// not just the first.
func resolveService(name string, svc *compose.Service, doc *compose.Document) (*Plan, []*ServiceError) {
	var errs []*ServiceError

	if svc.Image == "" {
		errs = append(errs, configErr(name, "service declares no image"))
	} else if _, err := reference.ParseNormalizedNamed(svc.Image); err != nil {
		errs = append(errs, configErr(name, "invalid image reference %q: %v", svc.Image, err))
	}

	if !svc.Restart.Valid() {
		errs = append(errs, configErr(name, "invalid restart policy %q (want always, on-failure or never)", svc.Restart))
	}

	var shmBytes int64
	if svc.ShmSize != "" {
		var err error
		shmBytes, err = units.RAMInBytes(svc.ShmSize)
		if err != nil {
			errs = append(errs, configErr(name, "invalid shm_size %q: %v", svc.ShmSize, err))
		}
	}

	networks, netErrs := resolveNetworks(name, svc, doc)
	errs = append(errs, netErrs...)

	ports, portErrs := resolvePorts(name, svc.Ports)
	errs = append(errs, portErrs...)

	volumes, volErrs := resolveVolumes(name, svc.Volumes)
	errs = append(errs, volErrs...)

	devices, devErrs := resolveDevices(name, svc)
	errs = append(errs, devErrs...)

	extraHosts, hostErrs := resolveExtraHosts(name, svc)
	errs = append(errs, hostErrs...)

	if len(errs) > 0 {
		return nil, errs
	}

	return &Plan{
		Service:    name,
		Image:      svc.Image,
		Command:    append([]string(nil), svc.Command...),
		Restart:    svc.Restart,
		Privileged: svc.Privileged,
		Tty:        svc.Tty,
		ShmBytes:   shmBytes,
		Env:        sortedEnv(svc.Environment),
		Ports:      ports,
		Volumes:    volumes,
		Networks:   networks,
		ExtraHosts: extraHosts,
		Devices:    devices,
		Labels: map[string]string{
			LabelService: name,
			LabelManaged: "true",
		},
	}, nil
}

// resolveNetworks checks that every referenced network is declared and
// resolves its driver.
func resolveNetworks(name string, svc *compose.Service, doc *compose.Document) ([]NetworkAttachment, []*ServiceError) {
	var errs []*ServiceError
	var attachments []NetworkAttachment

	for _, netName := range svc.Networks {
		net, ok := doc.Networks[netName]
		if !ok {
			errs = append(errs, configErr(name, "references undeclared network %q", netName))
			continue
		}
		driver := net.Driver
		if driver == "" {
			driver = defaultNetworkDriver
		}
		attachments = append(attachments, NetworkAttachment{Name: netName, Driver: driver})
	}

	return attachments, errs
}

// resolvePorts parses "HOST:CONTAINER" port specs and enforces that every
// mapping claims a positive host port, unique within the service.
func resolvePorts(name string, specs []string) ([]PortBinding, []*ServiceError) {
	var errs []*ServiceError
	var bindings []PortBinding
	seen := make(map[int]struct{})

	for _, spec := range specs {
		mappings, err := nat.ParsePortSpec(spec)
		if err != nil {
			errs = append(errs, configErr(name, "invalid port mapping %q: %v", spec, err))
			continue
		}
		for _, m := range mappings {
			if m.Binding.HostPort == "" {
				errs = append(errs, configErr(name, "port mapping %q declares no host port", spec))
				continue
			}
			hostPort, err := strconv.Atoi(m.Binding.HostPort)
			if err != nil || hostPort <= 0 {
				errs = append(errs, configErr(name, "port mapping %q: host port must be a positive integer", spec))
				continue
			}
			if _, dup := seen[hostPort]; dup {
				errs = append(errs, configErr(name, "host port %d is mapped more than once", hostPort))
				continue
			}
			seen[hostPort] = struct{}{}

			bindings = append(bindings, PortBinding{
				HostIP:        m.Binding.HostIP,
				HostPort:      hostPort,
				ContainerPort: m.Port.Int(),
				Protocol:      m.Port.Proto(),
			})
		}
	}

	return bindings, errs
}

// resolveVolumes parses "HOST:CONTAINER[:ro]" bind specs. Host paths must
// be syntactically valid absolute paths; existence is deferred to the host
// runtime, which reports a missing path at start time.
func resolveVolumes(name string, specs []string) ([]VolumeBinding, []*ServiceError) {
	var errs []*ServiceError
	var bindings []VolumeBinding

	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			errs = append(errs, configErr(name, "invalid volume binding %q (want HOST:CONTAINER[:ro])", spec))
			continue
		}

		source, target := parts[0], parts[1]
		readOnly := false
		if len(parts) == 3 {
			switch parts[2] {
			case "ro":
				readOnly = true
			case "rw":
			default:
				errs = append(errs, configErr(name, "invalid volume mode %q in %q", parts[2], spec))
				continue
			}
		}

		if !path.IsAbs(source) {
			errs = append(errs, configErr(name, "volume host path %q is not an absolute path", source))
			continue
		}
		if !path.IsAbs(target) {
			errs = append(errs, configErr(name, "volume container path %q is not an absolute path", target))
			continue
		}

		bindings = append(bindings, VolumeBinding{Source: source, Target: target, ReadOnly: readOnly})
	}

	return bindings, errs
}

// resolveDevices validates GPU reservations: a reservation requesting the
// gpu capability must carry a non-empty index set, every index must be a
// valid device index, and the set must agree with the visible-device
// environment variable when one is present.
func resolveDevices(name string, svc *compose.Service) ([]DeviceRequest, []*ServiceError) {
	var errs []*ServiceError
	var requests []DeviceRequest

	for _, res := range svc.GPUReservations() {
		if len(res.DeviceIDs) == 0 {
			errs = append(errs, deviceErr(name, "gpu reservation declares an empty device index set"))
			continue
		}

		ids := make([]string, 0, len(res.DeviceIDs))
		valid := true
		for _, id := range res.DeviceIDs {
			parsed, err := device.ParseIndexList(id)
			if err != nil || len(parsed) != 1 {
				errs = append(errs, deviceErr(name, "invalid gpu device index %q", id))
				valid = false
				continue
			}
			ids = append(ids, parsed[0])
		}
		if !valid {
			continue
		}

		if visible, ok := svc.Environment[device.VisibleDevicesVar]; ok {
			if err := device.CheckVisibility(ids, visible); err != nil {
				errs = append(errs, deviceErr(name, "%v", err))
				continue
			}
		}

		requests = append(requests, DeviceRequest{
			Capabilities: append([]string(nil), res.Capabilities...),
			DeviceIDs:    ids,
		})
	}

	return requests, errs
}

// resolveExtraHosts validates extra host entries and guarantees the ASR
// endpoint URL resolves from inside the container network namespace: when
// ASR_URL points at the host-gateway alias and the service does not map it
// itself, the canonical host-gateway entry is added to the plan.
func resolveExtraHosts(name string, svc *compose.Service) ([]string, []*ServiceError) {
	var errs []*ServiceError
	hosts := append([]string(nil), svc.ExtraHosts...)

	mapped := make(map[string]struct{})
	for _, entry := range hosts {
		host, _, ok := strings.Cut(entry, ":")
		if !ok || host == "" {
			errs = append(errs, configErr(name, "invalid extra_hosts entry %q (want HOST:ADDRESS)", entry))
			continue
		}
		mapped[host] = struct{}{}
	}

	if raw, ok := svc.Environment["ASR_URL"]; ok {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || u.Scheme == "" {
			errs = append(errs, configErr(name, "ASR_URL %q is not a valid URL", raw))
		} else if u.Hostname() == hostGatewayAlias {
			if _, ok := mapped[hostGatewayAlias]; !ok {
				hosts = append(hosts, fmt.Sprintf("%s:%s", hostGatewayAlias, hostGatewayAddress))
			}
		}
	}

	return hosts, errs
}

// sortedEnv flattens an environment map into deterministic KEY=value form.
func sortedEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

// sortedPortKeys returns the claimed host ports in ascending order.
func sortedPortKeys(claims map[int][]string) []int {
	keys := make([]int, 0, len(claims))
	for port := range claims {
		keys = append(keys, port)
	}
	sort.Ints(keys)
	return keys
}

// sortedDeviceKeys returns the claimed device indices in sorted order.
func sortedDeviceKeys(claims map[string][]string) []string {
	keys := make([]string, 0, len(claims))
	for id := range claims {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// excluding returns names without the given one, preserving order.
func excluding(names []string, skip string) []string {
	var out []string
	for _, n := range names {
		if n != skip {
			out = append(out, n)
		}
	}
	return out
}

// endpointForPort builds the local endpoint URL for a published host port.
func endpointForPort(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
