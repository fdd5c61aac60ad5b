package resolver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lumivoice/ttsdeploy/internal/compose"
)

// referenceDoc mirrors the reference single-GPU deployment descriptor.
const referenceDoc = `
networks:
  ai_network:
    driver: bridge

services:
  f5-tts:
    image: f5-tts:v1.1.7
    restart: always
    privileged: true
    tty: true
    shm_size: 8g
    networks:
      - ai_network
    ports:
      - "9988:9988"
    volumes:
      - /opt/f5-tts/results:/workspace/F5-TTS/results
      - /opt/f5-tts/error:/workspace/F5-TTS/error
      - /opt/f5-tts/logs:/workspace/F5-TTS/logs
    environment:
      HF_HUB_DISABLE_PROGRESS_BARS: "1"
      PYTHONUNBUFFERED: "1"
      CUDA_VISIBLE_DEVICES: "0"
      PYTORCH_CUDA_ALLOC_CONF: "max_split_size_mb:512"
      ASR_URL: "http://host.docker.internal:9977/api/v1/asr"
    deploy:
      resources:
        reservations:
          devices:
            - capabilities: [gpu]
              device_ids: ["0"]
    command:
      - python
      - src/f5_tts/infer/infer_fastapi.py
      - --port
      - "9988"
`

// secondDoc is the near-duplicate second deployment: disjoint network,
// host port and device index.
const secondDoc = `
networks:
  ai_network-01:
    driver: bridge

services:
  f5-tts-01:
    image: f5-tts:v1.1.7
    restart: always
    privileged: true
    shm_size: 8g
    networks:
      - ai_network-01
    ports:
      - "19988:9988"
    environment:
      CUDA_VISIBLE_DEVICES: "2"
    deploy:
      resources:
        reservations:
          devices:
            - capabilities: [gpu]
              device_ids: ["2"]
`

func mustLoad(t *testing.T, doc string) *compose.Document {
	t.Helper()
	d, err := compose.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return d
}

func TestResolveReferenceDocument(t *testing.T) {
	doc := mustLoad(t, referenceDoc)

	plans, errs := Resolve(doc)
	require.Empty(t, errs)
	require.Len(t, plans, 1)

	plan := plans[0]
	assert.Equal(t, "f5-tts", plan.Service)
	assert.Equal(t, "f5-tts:v1.1.7", plan.Image)
	assert.Equal(t, compose.RestartAlways, plan.Restart)
	assert.True(t, plan.Privileged)
	assert.True(t, plan.Tty)
	assert.Equal(t, int64(8*1024*1024*1024), plan.ShmBytes)
	assert.Equal(t, []string{"python", "src/f5_tts/infer/infer_fastapi.py", "--port", "9988"}, plan.Command)

	require.Len(t, plan.Ports, 1)
	assert.Equal(t, PortBinding{HostPort: 9988, ContainerPort: 9988, Protocol: "tcp"}, plan.Ports[0])

	require.Len(t, plan.Volumes, 3)
	assert.Equal(t, "/opt/f5-tts/results", plan.Volumes[0].Source)
	assert.Equal(t, "/workspace/F5-TTS/results", plan.Volumes[0].Target)
	assert.Equal(t, "/opt/f5-tts/error", plan.Volumes[1].Source)
	assert.Equal(t, "/opt/f5-tts/logs", plan.Volumes[2].Source)

	require.Len(t, plan.Networks, 1)
	assert.Equal(t, NetworkAttachment{Name: "ai_network", Driver: "bridge"}, plan.Networks[0])

	require.Len(t, plan.Devices, 1)
	assert.Equal(t, []string{"gpu"}, plan.Devices[0].Capabilities)
	assert.Equal(t, []string{"0"}, plan.Devices[0].DeviceIDs)

	// Environment is sorted and complete.
	assert.Equal(t, []string{
		"ASR_URL=http://host.docker.internal:9977/api/v1/asr",
		"CUDA_VISIBLE_DEVICES=0",
		"HF_HUB_DISABLE_PROGRESS_BARS=1",
		"PYTHONUNBUFFERED=1",
		"PYTORCH_CUDA_ALLOC_CONF=max_split_size_mb:512",
	}, plan.Env)

	// ASR_URL points at the host-gateway alias, so the alias mapping is
	// guaranteed on the plan.
	assert.Equal(t, []string{"host.docker.internal:host-gateway"}, plan.ExtraHosts)

	assert.Equal(t, "http://localhost:9988", plan.Endpoint())
	assert.Equal(t, "f5-tts", plan.Labels[LabelService])
}

func TestResolveIsIdempotent(t *testing.T) {
	doc := mustLoad(t, referenceDoc)

	first, errs1 := Resolve(doc)
	second, errs2 := Resolve(doc)

	require.Empty(t, errs1)
	require.Empty(t, errs2)
	require.Equal(t, first, second)

	// Byte-identical, not merely structurally equal.
	a, err := yaml.Marshal(first)
	require.NoError(t, err)
	b, err := yaml.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolveDuplicateHostPortNamesBothServices(t *testing.T) {
	doc := mustLoad(t, `
services:
  tts-a:
    image: f5-tts:v1.1.7
    ports: ["9988:9988"]
  tts-b:
    image: f5-tts:v1.1.7
    ports: ["9988:9988"]
  tts-c:
    image: f5-tts:v1.1.7
    ports: ["19988:9988"]
`)

	plans, errs := Resolve(doc)

	// The untainted service still resolves.
	require.Len(t, plans, 1)
	assert.Equal(t, "tts-c", plans[0].Service)

	require.Len(t, errs, 2)
	byService := map[string]*ServiceError{}
	for _, e := range errs {
		assert.Equal(t, ErrConfiguration, e.Kind)
		byService[e.Service] = e
	}
	require.Contains(t, byService, "tts-a")
	require.Contains(t, byService, "tts-b")
	assert.Contains(t, byService["tts-a"].Constraint, "tts-b")
	assert.Contains(t, byService["tts-b"].Constraint, "tts-a")
}

func TestResolveUnknownNetworkIsolatesFailure(t *testing.T) {
	doc := mustLoad(t, `
networks:
  ai_network:
    driver: bridge
services:
  good:
    image: f5-tts:v1.1.7
    networks: [ai_network]
    ports: ["9988:9988"]
  bad:
    image: f5-tts:v1.1.7
    networks: [ghost_network]
    ports: ["19988:9988"]
`)

	plans, errs := Resolve(doc)

	require.Len(t, plans, 1)
	assert.Equal(t, "good", plans[0].Service)

	require.Len(t, errs, 1)
	assert.Equal(t, "bad", errs[0].Service)
	assert.Equal(t, ErrConfiguration, errs[0].Kind)
	assert.Contains(t, errs[0].Constraint, "ghost_network")
}

func TestResolveEmptyDeviceSet(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
    deploy:
      resources:
        reservations:
          devices:
            - capabilities: [gpu]
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidDeviceReservation, errs[0].Kind)
	assert.Equal(t, "f5-tts", errs[0].Service)
}

func TestResolveDeviceNotVisible(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
    environment:
      CUDA_VISIBLE_DEVICES: "0,1"
    deploy:
      resources:
        reservations:
          devices:
            - capabilities: [gpu]
              device_ids: ["2"]
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidDeviceReservation, errs[0].Kind)
	assert.Contains(t, errs[0].Constraint, "CUDA_VISIBLE_DEVICES")
}

func TestResolveDuplicateDeviceIndexNamesBothServices(t *testing.T) {
	doc := mustLoad(t, `
services:
  tts-a:
    image: f5-tts:v1.1.7
    ports: ["9988:9988"]
    deploy:
      resources:
        reservations:
          devices:
            - capabilities: [gpu]
              device_ids: ["0"]
  tts-b:
    image: f5-tts:v1.1.7
    ports: ["19988:9988"]
    deploy:
      resources:
        reservations:
          devices:
            - capabilities: [gpu]
              device_ids: ["0"]
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, ErrConfiguration, e.Kind)
		assert.Contains(t, e.Constraint, "device index 0")
	}
}

func TestResolveTwoDocumentsIndependently(t *testing.T) {
	plansA, errsA := Resolve(mustLoad(t, referenceDoc))
	plansB, errsB := Resolve(mustLoad(t, secondDoc))

	require.Empty(t, errsA)
	require.Empty(t, errsB)
	require.Len(t, plansA, 1)
	require.Len(t, plansB, 1)

	// Disjoint networks, host ports and device indices across documents.
	assert.NotEqual(t, plansA[0].Networks[0].Name, plansB[0].Networks[0].Name)
	assert.NotEqual(t, plansA[0].Ports[0].HostPort, plansB[0].Ports[0].HostPort)
	assert.NotEqual(t, plansA[0].Devices[0].DeviceIDs, plansB[0].Devices[0].DeviceIDs)
}

func TestResolveRelativeVolumePath(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
    volumes:
      - results:/workspace/F5-TTS/results
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrConfiguration, errs[0].Kind)
	assert.Contains(t, errs[0].Constraint, "absolute")
}

func TestResolveCollectsAllViolationsPerService(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: ""
    restart: sometimes
    shm_size: a-lot
    ports: ["zero:9988"]
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.GreaterOrEqual(t, len(errs), 4)
	for _, e := range errs {
		assert.Equal(t, "f5-tts", e.Service)
		assert.Equal(t, ErrConfiguration, e.Kind)
	}
}

func TestResolveMissingHostPort(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
    ports: ["9988"]
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Constraint, "host port")
}

func TestResolveInvalidASRURL(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
    environment:
      ASR_URL: "not a url"
`)

	plans, errs := Resolve(doc)
	assert.Empty(t, plans)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrConfiguration, errs[0].Kind)
	assert.Contains(t, errs[0].Constraint, "ASR_URL")
}

func TestResolveKeepsExplicitHostGatewayMapping(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
    extra_hosts:
      - "host.docker.internal:192.168.1.10"
    environment:
      ASR_URL: "http://host.docker.internal:9977/api/v1/asr"
`)

	plans, errs := Resolve(doc)
	require.Empty(t, errs)
	require.Len(t, plans, 1)

	// The explicit mapping wins; no duplicate alias entry is added.
	assert.Equal(t, []string{"host.docker.internal:192.168.1.10"}, plans[0].ExtraHosts)
}

func TestResolveNoPortsMeansNoEndpoint(t *testing.T) {
	doc := mustLoad(t, `
services:
  f5-tts:
    image: f5-tts:v1.1.7
`)

	plans, errs := Resolve(doc)
	require.Empty(t, errs)
	require.Len(t, plans, 1)
	assert.Empty(t, plans[0].Endpoint())
}
