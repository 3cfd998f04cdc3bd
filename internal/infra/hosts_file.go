package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// HostsFileImpl implements domain.HostsFile on a path in the local filesystem.
type HostsFileImpl struct {
	path string
}

// NewHostsFile creates a hosts file adapter for the platform default path.
func NewHostsFile() *HostsFileImpl {
	return &HostsFileImpl{path: DefaultHostsPath()}
}

// NewHostsFileWithPath creates a hosts file adapter for a custom path (for testing).
func NewHostsFileWithPath(path string) *HostsFileImpl {
	return &HostsFileImpl{path: path}
}

// Path returns the hosts file location.
func (h *HostsFileImpl) Path() string {
	return h.path
}

// Read returns the file content. A missing file reads as empty.
func (h *HostsFileImpl) Read() (string, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the file content. It writes a temp file next to the target
// and renames it over; when the directory is not writable but the file is
// (e.g. a bind-mounted /etc/hosts) it falls back to an in-place write.
func (h *HostsFileImpl) Write(content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(h.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", h.path, os.Getpid())
	err := os.WriteFile(tmpPath, []byte(content), mode)
	if err == nil {
		if err = os.Rename(tmpPath, h.path); err == nil {
			return nil
		}
		os.Remove(tmpPath) // Clean up on failure
	}

	if werr := os.WriteFile(h.path, []byte(content), mode); werr != nil {
		if os.IsPermission(werr) {
			return werr
		}
		return fmt.Errorf("failed to write %s: %w", filepath.Base(h.path), werr)
	}
	return nil
}

// Ensure HostsFileImpl implements domain.HostsFile.
var _ domain.HostsFile = (*HostsFileImpl)(nil)
