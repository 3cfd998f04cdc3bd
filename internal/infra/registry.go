package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// RegistryFileName is the fallback registry file under the data directory.
const RegistryFileName = "monitor.json"

// registryEntry is the on-disk registry record.
type registryEntry struct {
	PID           int    `json:"pid"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	AppVersion    string `json:"app_version,omitempty"`
	Mode          string `json:"mode"`
}

// FileRegistry implements domain.DaemonRegistry using a JSON file. It is the
// fallback when the encrypted store cannot be opened.
type FileRegistry struct {
	path string
	now  func() time.Time
}

// NewFileRegistry creates a registry in dataDir.
func NewFileRegistry(dataDir string) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, RegistryFileName))
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string) *FileRegistry {
	return &FileRegistry{path: path, now: time.Now}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records the running monitor, replacing any previous entry.
func (r *FileRegistry) Register(daemon domain.Daemon) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return err
	}

	// Use file lock so a second monitor cannot interleave its write
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	startedAt := daemon.StartedAt
	if startedAt.IsZero() {
		startedAt = r.now()
	}
	entry := &registryEntry{
		PID:           daemon.PID,
		StartedAt:     startedAt.Unix(),
		LastHeartbeat: r.now().Unix(),
		AppVersion:    daemon.AppVersion,
		Mode:          "user",
	}
	if os.Geteuid() == 0 {
		entry.Mode = "system"
	}

	return r.atomicWrite(entry)
}

// UpdateHeartbeat updates timestamp for liveness check.
func (r *FileRegistry) UpdateHeartbeat() error {
	entry, err := r.read()
	if err != nil {
		return err
	}
	if entry == nil {
		return errors.New("monitor not registered")
	}

	entry.LastHeartbeat = r.now().Unix()
	return r.atomicWrite(entry)
}

// Status returns the registered monitor, or nil when none is registered.
func (r *FileRegistry) Status() (*domain.DaemonStatus, error) {
	entry, err := r.read()
	if err != nil || entry == nil {
		return nil, err
	}
	return &domain.DaemonStatus{
		PID:           entry.PID,
		LastHeartbeat: time.Unix(entry.LastHeartbeat, 0),
		AppVersion:    entry.AppVersion,
		Mode:          entry.Mode,
	}, nil
}

// Clear removes registry file.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *FileRegistry) read() (*registryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry registryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", r.path, err)
	}
	return &entry, nil
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(entry *registryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
