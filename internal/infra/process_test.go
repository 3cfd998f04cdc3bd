package infra

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessManager_EmptyPatternMatchesNothing(t *testing.T) {
	pm := NewProcessManager()

	pids, err := pm.FindByName("")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestProcessManager_IsRunning(t *testing.T) {
	pm := NewProcessManager()

	assert.True(t, pm.IsRunning(os.Getpid()))
	assert.False(t, pm.IsRunning(0))
	assert.False(t, pm.IsRunning(-1))
}
