package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

func TestX11WindowSource_ActiveWindow(t *testing.T) {
	runner := newMockCommandRunner()
	runner.outputs["xdotool getactivewindow"] = "58720263\n"
	runner.outputs["xdotool getwindowname 58720263"] = "#general - My Server - Discord\n"
	runner.outputs["xdotool getwindowpid 58720263"] = "4242\n"
	runner.outputs["xprop -id 58720263 WM_CLASS"] = `WM_CLASS(STRING) = "discord", "discord"` + "\n"

	info, err := NewX11WindowSource(runner).ActiveWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.WindowInfo{
		WindowID:  "58720263",
		PID:       4242,
		ClassName: "discord",
		Title:     "#general - My Server - Discord",
	}, info)
}

func TestX11WindowSource_NoWindow(t *testing.T) {
	runner := newMockCommandRunner()
	runner.failures["xdotool getactivewindow"] = errCommandFailed

	_, err := NewX11WindowSource(runner).ActiveWindow(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoWindow)
}

func TestX11WindowSource_PartialInfo(t *testing.T) {
	runner := newMockCommandRunner()
	runner.outputs["xdotool getactivewindow"] = "7"
	runner.outputs["xdotool getwindowname 7"] = "Terminal"
	runner.failures["xdotool getwindowpid 7"] = errCommandFailed
	runner.failures["xprop"] = errCommandFailed

	info, err := NewX11WindowSource(runner).ActiveWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", info.WindowID)
	assert.Equal(t, "Terminal", info.Title)
	assert.Zero(t, info.PID)
	assert.Empty(t, info.ClassName)
}

func TestParseWMClass(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`WM_CLASS(STRING) = "discord", "discord"`, "discord"},
		{`WM_CLASS(STRING) = "Navigator", "firefox"`, "firefox"},
		{`WM_CLASS(STRING) = "slack"`, "slack"},
		{`WM_CLASS:  not found.`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseWMClass(tt.line))
		})
	}
}
