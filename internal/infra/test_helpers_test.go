package infra

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// mockCommandRunner is a test double for CommandRunner. Outputs are keyed by
// the full command line.
type mockCommandRunner struct {
	mu        sync.Mutex
	installed map[string]bool
	outputs   map[string]string
	failures  map[string]error
	onRun     func(name string, args []string)
	calls     []string
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		installed: make(map[string]bool),
		outputs:   make(map[string]string),
		failures:  make(map[string]error),
	}
}

func (m *mockCommandRunner) key(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.Output(ctx, name, args...)
	return err
}

func (m *mockCommandRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	key := m.key(name, args)
	m.calls = append(m.calls, key)
	err, failed := m.failures[key]
	if !failed {
		err, failed = m.failures[name]
	}
	out, ok := m.outputs[key]
	hook := m.onRun
	m.mu.Unlock()

	if failed {
		return nil, err
	}
	if hook != nil {
		hook(name, args)
	}
	if !ok {
		return nil, nil
	}
	return []byte(out), nil
}

func (m *mockCommandRunner) LookPath(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed[name]
}

func (m *mockCommandRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var errCommandFailed = errors.New("exit status 1")
