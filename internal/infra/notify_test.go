package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

func TestDesktopNotifier(t *testing.T) {
	runner := newMockCommandRunner()
	n := NewDesktopNotifier(runner, zap.NewNop())

	n.Notify(context.Background(), "TotalControl - BLOCKED", "tiktok is blocked", domain.UrgencyCritical)
	n.Notify(context.Background(), "hi", "there", "")

	assert.Equal(t, []string{
		"notify-send -u critical -a TotalControl TotalControl - BLOCKED tiktok is blocked",
		"notify-send -u normal -a TotalControl hi there",
	}, runner.Calls())
}

func TestDesktopNotifier_FailureIsSilent(t *testing.T) {
	runner := newMockCommandRunner()
	runner.failures["notify-send"] = errCommandFailed

	assert.NotPanics(t, func() {
		NewDesktopNotifier(runner, zap.NewNop()).Notify(context.Background(), "t", "m", domain.UrgencyLow)
	})
}
