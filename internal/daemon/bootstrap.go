package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// RunCommand is the hidden CLI command that runs the monitor in the foreground.
const RunCommand = "run"

// LogFileName is where a detached monitor writes its output.
const LogFileName = "monitor.log"

// DaemonCommand builds the self-exec command for a detached monitor.
// extraArgs are appended after the run command (e.g. --config path).
func DaemonCommand(executable string, extraArgs ...string) *exec.Cmd {
	args := append([]string{RunCommand}, extraArgs...)
	cmd := exec.Command(executable, args...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}
	cmd.Stdin = nil
	return cmd
}

// StartDaemon spawns the monitor as a detached process. Its output is
// appended to LogFileName under dataDir. It returns the child's PID.
func StartDaemon(dataDir string, extraArgs ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(dataDir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, fmt.Errorf("open monitor log: %w", err)
	}
	defer logFile.Close()

	cmd := DaemonCommand(executable, extraArgs...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child outlives us; release it so no zombie bookkeeping is kept.
	_ = cmd.Process.Release()
	return pid, nil
}
