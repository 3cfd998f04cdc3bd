package infra

import (
	"context"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds every external tool invocation.
const DefaultCommandTimeout = 3 * time.Second

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) bool
}

// RealCommandRunner executes real system commands, each bounded by Timeout.
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner creates a runner with the given per-command timeout.
// A zero timeout uses DefaultCommandTimeout.
func NewCommandRunner(timeout time.Duration) *RealCommandRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &RealCommandRunner{Timeout: timeout}
}

// Run executes a command and waits for it to complete.
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// Output executes a command and returns its stdout.
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

// LookPath reports whether name is an installed executable.
func (r *RealCommandRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (r *RealCommandRunner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

var _ CommandRunner = (*RealCommandRunner)(nil)
