package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

const (
	// NotifyAppName is the sender shown by the notification daemon.
	NotifyAppName = "TotalControl"
	notifyTimeout = 5 * time.Second
)

// DesktopNotifier sends notifications through notify-send.
type DesktopNotifier struct {
	runner CommandRunner
	logger *zap.Logger
}

// NewDesktopNotifier creates a notifier using runner.
func NewDesktopNotifier(runner CommandRunner, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{runner: runner, logger: logger}
}

// Notify sends the notification. Failures are logged and dropped.
func (n *DesktopNotifier) Notify(ctx context.Context, title, message string, urgency domain.Urgency) {
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	err := n.runner.Run(ctx, "notify-send", "-u", string(urgency), "-a", NotifyAppName, title, message)
	if err != nil {
		n.logger.Debug("notification failed", zap.String("title", title), zap.Error(err))
	}
}

var _ domain.Notifier = (*DesktopNotifier)(nil)
