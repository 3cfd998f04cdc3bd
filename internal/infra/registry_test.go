package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

func newTestRegistry(t *testing.T, now *time.Time) *FileRegistry {
	t.Helper()
	r := NewFileRegistryWithPath(filepath.Join(t.TempDir(), RegistryFileName))
	r.now = func() time.Time { return *now }
	return r
}

func TestFileRegistry_RegisterAndStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(t, &now)

	err := r.Register(domain.Daemon{PID: 12345, StartedAt: now.Add(-time.Minute), AppVersion: "0.1.0"})
	require.NoError(t, err)

	status, err := r.Status()
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 12345, status.PID)
	assert.Equal(t, "0.1.0", status.AppVersion)
	assert.True(t, status.LastHeartbeat.Equal(now))
	assert.Contains(t, []string{"user", "system"}, status.Mode)

	info, err := os.Stat(r.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileRegistry_StatusWhenEmpty(t *testing.T) {
	now := time.Now()
	r := newTestRegistry(t, &now)

	status, err := r.Status()
	assert.NoError(t, err)
	assert.Nil(t, status)
}

func TestFileRegistry_UpdateHeartbeat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(t, &now)

	assert.Error(t, r.UpdateHeartbeat(), "heartbeat before register")

	require.NoError(t, r.Register(domain.Daemon{PID: 1}))
	now = now.Add(30 * time.Second)
	require.NoError(t, r.UpdateHeartbeat())

	status, err := r.Status()
	require.NoError(t, err)
	assert.True(t, status.LastHeartbeat.Equal(now))
}

func TestFileRegistry_RegisterReplaces(t *testing.T) {
	now := time.Now()
	r := newTestRegistry(t, &now)

	require.NoError(t, r.Register(domain.Daemon{PID: 1}))
	require.NoError(t, r.Register(domain.Daemon{PID: 2}))

	status, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.PID)
}

func TestFileRegistry_Clear(t *testing.T) {
	now := time.Now()
	r := newTestRegistry(t, &now)

	require.NoError(t, r.Register(domain.Daemon{PID: 1}))
	require.NoError(t, r.Clear())
	require.NoError(t, r.Clear(), "clearing twice is fine")

	status, err := r.Status()
	assert.NoError(t, err)
	assert.Nil(t, status)
}

func TestFileRegistry_CorruptFile(t *testing.T) {
	now := time.Now()
	r := newTestRegistry(t, &now)
	require.NoError(t, os.WriteFile(r.Path(), []byte("{not json"), 0600))

	_, err := r.Status()
	assert.Error(t, err)
}
