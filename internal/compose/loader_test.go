package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReferenceDescriptor(t *testing.T) {
	doc, err := LoadFile("../../deploy.yml")
	require.NoError(t, err)

	require.Contains(t, doc.Networks, "ai_network")
	assert.Equal(t, "bridge", doc.Networks["ai_network"].Driver)

	require.Contains(t, doc.Services, "f5-tts")
	svc := doc.Services["f5-tts"]
	assert.Equal(t, "f5-tts:v1.1.7", svc.Image)
	assert.Equal(t, RestartAlways, svc.Restart)
	assert.True(t, svc.Privileged)
	assert.True(t, svc.Tty)
	assert.Equal(t, "8g", svc.ShmSize)
	assert.Equal(t, []string{"9988:9988"}, svc.Ports)
	assert.Len(t, svc.Volumes, 3)
	assert.Equal(t, "0", svc.Environment["CUDA_VISIBLE_DEVICES"])

	reservations := svc.GPUReservations()
	require.Len(t, reservations, 1)
	assert.Equal(t, []string{"0"}, reservations[0].DeviceIDs)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader(`
services:
  f5-tts:
    image: f5-tts:v1.1.7
    restrat: always
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restrat")
}

func TestLoadRejectsUnknownTopLevelSections(t *testing.T) {
	_, err := Load(strings.NewReader(`
volumes:
  data: {}
services:
  f5-tts:
    image: f5-tts:v1.1.7
`))
	require.Error(t, err)
}

func TestLoadRejectsEmptyDocument(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	require.Error(t, err)

	_, err = Load(strings.NewReader("networks: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no services")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("does-not-exist.yml")
	require.Error(t, err)
}

func TestServiceNamesAreSorted(t *testing.T) {
	doc := &Document{Services: map[string]Service{
		"zeta":  {},
		"alpha": {},
		"mid":   {},
	}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, doc.ServiceNames())
}

func TestGPUReservationsFiltersCapabilities(t *testing.T) {
	svc := Service{Deploy: Deploy{Resources: Resources{Reservations: Reservations{
		Devices: []DeviceReservation{
			{Capabilities: []string{"gpu"}, DeviceIDs: []string{"0"}},
			{Capabilities: []string{"tpu"}, DeviceIDs: []string{"1"}},
		},
	}}}}

	reservations := svc.GPUReservations()
	require.Len(t, reservations, 1)
	assert.Equal(t, []string{"0"}, reservations[0].DeviceIDs)
}

func TestRestartPolicyValid(t *testing.T) {
	assert.True(t, RestartPolicy("").Valid())
	assert.True(t, RestartAlways.Valid())
	assert.True(t, RestartOnFailure.Valid())
	assert.True(t, RestartNever.Valid())
	assert.False(t, RestartPolicy("unless-stopped").Valid())
}
