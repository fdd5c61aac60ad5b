package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumivoice/ttsdeploy/internal/resolver"
)

func TestSelectPlans(t *testing.T) {
	plans := []resolver.Plan{
		{Service: "f5-tts"},
		{Service: "f5-tts-01"},
	}

	selected, err := selectPlans(plans, nil)
	require.NoError(t, err)
	assert.Len(t, selected, 2)

	selected, err = selectPlans(plans, []string{"f5-tts-01"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "f5-tts-01", selected[0].Service)
}

func TestSelectPlansUnknownService(t *testing.T) {
	plans := []resolver.Plan{{Service: "f5-tts"}}

	_, err := selectPlans(plans, []string{"ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestExitStatus(t *testing.T) {
	assert.NoError(t, exitStatus(0, 0))
	assert.Error(t, exitStatus(1, 0))
	assert.Error(t, exitStatus(0, 2))
	assert.Error(t, exitStatus(1, 1))
}
