package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs without root: hosts writes soft-fail, data lives in $HOME.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root and can rewrite the hosts file.
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode      ExecMode
	DataDir   string // Encrypted store, key, rules and caches
	HostsPath string // OS hosts file
	IsRoot    bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	return detectExecMode(os.Geteuid() == 0, GetRealUserHome(), runtime.GOOS)
}

func detectExecMode(isRoot bool, home, goos string) *ExecModeConfig {
	if isRoot {
		dataDir := "/var/lib/totalctl"
		if goos == "windows" {
			dataDir = filepath.Join(os.Getenv("ProgramData"), "totalctl")
		}
		return &ExecModeConfig{
			Mode:      ExecModeSystem,
			DataDir:   dataDir,
			HostsPath: HostsPathForOS(goos),
			IsRoot:    true,
		}
	}

	return &ExecModeConfig{
		Mode:      ExecModeUser,
		DataDir:   filepath.Join(home, ".totalctl"),
		HostsPath: HostsPathForOS(goos),
		IsRoot:    false,
	}
}

// DefaultHostsPath returns the hosts file path for the running OS.
func DefaultHostsPath() string {
	return HostsPathForOS(runtime.GOOS)
}

// HostsPathForOS returns the hosts file path for goos.
func HostsPathForOS(goos string) string {
	if goos == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return root + `\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
