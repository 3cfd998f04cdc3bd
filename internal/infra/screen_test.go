package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

func newTestCapturer(t *testing.T, runner *mockCommandRunner) (*ScreenCapturerImpl, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "screenshots")
	c := NewScreenCapturer(dir, runner, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC) }
	return c, dir
}

func TestScreenCapturer_NoTool(t *testing.T) {
	c, _ := newTestCapturer(t, newMockCommandRunner())

	_, err := c.Capture(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoCaptureTool)
}

func TestScreenCapturer_FallsBackToNextTool(t *testing.T) {
	runner := newMockCommandRunner()
	runner.installed["gnome-screenshot"] = true
	runner.installed["scrot"] = true
	runner.failures["gnome-screenshot"] = errCommandFailed
	runner.onRun = func(name string, args []string) {
		if name == "scrot" {
			_ = os.WriteFile(args[0], []byte("png"), 0600)
		}
	}

	c, dir := newTestCapturer(t, runner)
	path, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "screen_20260301_140509.png"), path)
	assert.FileExists(t, path)
}

func TestScreenCapturer_ToolExitsWithoutFile(t *testing.T) {
	runner := newMockCommandRunner()
	runner.installed["scrot"] = true

	c, _ := newTestCapturer(t, runner)
	_, err := c.Capture(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoCaptureTool)
}

func TestScreenCapturer_Flameshot(t *testing.T) {
	runner := newMockCommandRunner()
	runner.installed["flameshot"] = true
	runner.onRun = func(name string, args []string) {
		_ = os.WriteFile(filepath.Join(args[2], "2026-03-01_14-05.png"), []byte("png"), 0600)
	}

	c, dir := newTestCapturer(t, runner)
	path, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-03-01_14-05.png"), path)
}

func TestTesseractExtractor(t *testing.T) {
	runner := newMockCommandRunner()
	runner.outputs["tesseract /tmp/a.png stdout -l eng --psm 3"] = "  For You\nTrending now \n"

	e := NewTesseractExtractor(runner, zap.NewNop())
	assert.Equal(t, "For You\nTrending now", e.ExtractText(context.Background(), "/tmp/a.png"))

	runner.failures["tesseract"] = errCommandFailed
	assert.Empty(t, e.ExtractText(context.Background(), "/tmp/a.png"))
}
