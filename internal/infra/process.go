// Package infra adapts totalctl to the host: the hosts file, desktop tools,
// the process table and on-disk storage.
package infra

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// ProcessManagerImpl is the process table seen by the enforcement sweep.
// Blocked items name process patterns; the sweep looks each one up here
// and kills whatever matches.
type ProcessManagerImpl struct{}

// NewProcessManager returns the gopsutil-backed process table.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName lists PIDs whose executable name contains pattern, ignoring
// case. An empty pattern matches nothing so a bad item cannot sweep the
// whole table.
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	needle := strings.ToLower(pattern)
	if needle == "" {
		return nil, nil
	}

	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var pids []int
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// exited between listing and lookup
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}

// Kill sends SIGKILL to pid.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning reports whether pid is alive. Used to tell a live monitor from
// a stale registry entry.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
