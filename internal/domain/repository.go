package domain

import (
	"context"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// HostsFile is the OS name-resolution override file.
type HostsFile interface {
	Read() (string, error)
	Write(content string) error
	Path() string
}

// DNSFlusher clears the OS resolver cache. Best effort.
type DNSFlusher interface {
	Flush(ctx context.Context) error
}

// RuleRepository persists the full rule collection.
// Save must durably replace the whole collection before returning.
type RuleRepository interface {
	Load() ([]Rule, error)
	Save(rules []Rule) error
}

// UnlockStore records one-shot password unlocks per rule and day.
type UnlockStore interface {
	IsUnlocked(ruleID, day string) (bool, error)
	Unlock(ruleID, day string) error
	ClearUnlocks() error
}

// SecretStore provides encrypted persistent storage for secrets.
type SecretStore interface {
	GetSecret(key string) (string, error)
	SetSecret(key, value string) error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// DaemonRegistry tracks the monitor's liveness for the status command.
type DaemonRegistry interface {
	Register(daemon Daemon) error
	UpdateHeartbeat() error
	Status() (*DaemonStatus, error)
	Clear() error
}

// AnalysisHistory stores OCR classification records.
type AnalysisHistory interface {
	Record(a ScreenAnalysis) error
	Recent(limit int) ([]ScreenAnalysis, error)
}

// ProgressCache persists the progress record across restarts and shares it
// between the daemon and CLI commands. Load of a missing cache is a zero record.
type ProgressCache interface {
	Load() (ProgressRecord, error)
	Save(rec ProgressRecord) error
}

// WindowSource returns the focused window. ErrNoWindow when nothing is focused.
type WindowSource interface {
	ActiveWindow(ctx context.Context) (WindowInfo, error)
}

// ScreenCapturer writes a screenshot and returns its path.
// ErrNoCaptureTool when no tool is installed.
type ScreenCapturer interface {
	Capture(ctx context.Context) (string, error)
}

// TextExtractor runs OCR on an image. Returns "" on OCR failure.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) string
}

// ProgressSource fetches today's fitness totals from a remote service.
type ProgressSource interface {
	FetchProgress(ctx context.Context, day string) (steps, workoutMinutes int, err error)
}

// Urgency of a desktop notification.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Notifier delivers desktop notifications. Fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, title, message string, urgency Urgency)
}
