package infra

import (
	"context"
	"runtime"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// DNSFlusherImpl clears the resolver cache with the platform's tools.
type DNSFlusherImpl struct {
	goos   string
	runner CommandRunner
	logger *zap.Logger
}

// NewDNSFlusher creates a flusher for the running OS.
func NewDNSFlusher(runner CommandRunner, logger *zap.Logger) *DNSFlusherImpl {
	return NewDNSFlusherForOS(runtime.GOOS, runner, logger)
}

// NewDNSFlusherForOS creates a flusher for a specific OS (for testing).
func NewDNSFlusherForOS(goos string, runner CommandRunner, logger *zap.Logger) *DNSFlusherImpl {
	return &DNSFlusherImpl{goos: goos, runner: runner, logger: logger}
}

// FlushCommands returns the commands run for goos, in order.
func FlushCommands(goos string) [][]string {
	switch goos {
	case "darwin":
		return [][]string{
			{"dscacheutil", "-flushcache"},
			{"killall", "-HUP", "mDNSResponder"},
		}
	case "windows":
		return [][]string{{"ipconfig", "/flushdns"}}
	default:
		return [][]string{
			{"resolvectl", "flush-caches"},
			{"systemd-resolve", "--flush-caches"},
		}
	}
}

// Flush runs the flush commands. On linux the first command that succeeds
// ends the attempt; elsewhere every command runs. The last error is returned.
func (f *DNSFlusherImpl) Flush(ctx context.Context) error {
	var lastErr error
	for _, cmd := range FlushCommands(f.goos) {
		err := f.runner.Run(ctx, cmd[0], cmd[1:]...)
		if err != nil {
			f.logger.Debug("dns flush command failed",
				zap.String("command", cmd[0]),
				zap.Error(err))
			lastErr = err
			continue
		}
		if f.goos != "darwin" && f.goos != "windows" {
			return nil
		}
	}
	return lastErr
}

var _ domain.DNSFlusher = (*DNSFlusherImpl)(nil)
