// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrInvalidRule   = errors.New("invalid rule")
	ErrNoWindow      = errors.New("no active window")
	ErrNoCaptureTool = errors.New("no capture tool available")
	ErrNoSecret      = errors.New("secret not found")
	ErrNoPassword    = errors.New("unlock password not set")
	ErrWrongPassword = errors.New("wrong password")
)

// ConditionKind identifies which unlock criterion a rule waits for.
type ConditionKind string

const (
	ConditionSteps    ConditionKind = "steps"
	ConditionTime     ConditionKind = "time"
	ConditionWorkout  ConditionKind = "workout"
	ConditionLocation ConditionKind = "location"
	ConditionTomorrow ConditionKind = "tomorrow"
	ConditionPassword ConditionKind = "password"
)

// ConditionKinds lists every supported kind in display order.
var ConditionKinds = []ConditionKind{
	ConditionSteps,
	ConditionTime,
	ConditionWorkout,
	ConditionLocation,
	ConditionTomorrow,
	ConditionPassword,
}

// DefaultRadiusMeters is the geofence radius used when a location omits one.
const DefaultRadiusMeters = 100

// Location is a named geofence center.
type Location struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lng"`
	RadiusMeters int     `json:"radius"`
}

// TimeOfDay is a 24h wall-clock target.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time target %q must be HH:MM: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant of this time of day on the same date as ref.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

// Condition is a tagged union: exactly one kind-specific payload is set.
type Condition struct {
	Kind           ConditionKind
	StepsTarget    int
	TimeTarget     TimeOfDay
	WorkoutMinutes int
	Location       *Location
}

// Rule blocks a set of items until its condition is met.
type Rule struct {
	ID           string
	BlockedItems []string
	Condition    Condition
	Enabled      bool
	CreatedAt    time.Time
}

// ProgressSnapshot is an immutable view of all tracked signals at one instant.
type ProgressSnapshot struct {
	StepsToday          int
	WorkoutMinutesToday int
	CurrentLocation     *Location
	Now                 time.Time
	LastSync            time.Time
}

// ProgressRecord is the persisted form of the progress store.
type ProgressRecord struct {
	Day            string
	Steps          int
	WorkoutMinutes int
	Location       *Location
	LastSync       time.Time
}

// Day returns the snapshot's calendar day as "2006-01-02".
func (p ProgressSnapshot) Day() string {
	return DayOf(p.Now)
}

// DayOf formats t as a calendar day key.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// ScreenCategory is the window-title classifier taxonomy.
type ScreenCategory string

const (
	ScreenDM            ScreenCategory = "dm"
	ScreenDMList        ScreenCategory = "dm_list"
	ScreenServerChannel ScreenCategory = "server_channel"
	ScreenFeed          ScreenCategory = "feed"
	ScreenReels         ScreenCategory = "reels"
	ScreenNotifications ScreenCategory = "notifications"
	ScreenProfile       ScreenCategory = "profile"
	ScreenSearch        ScreenCategory = "search"
	ScreenSettings      ScreenCategory = "settings"
	ScreenUnknown       ScreenCategory = "unknown"
	ScreenAllowed       ScreenCategory = "allowed"
)

// TextCategory is the OCR-text classifier taxonomy. It is deliberately a
// separate type from ScreenCategory. Declaration order breaks score ties.
type TextCategory string

const (
	TextDM            TextCategory = "dm"
	TextFeed          TextCategory = "feed"
	TextReels         TextCategory = "reels"
	TextNotifications TextCategory = "notifications"
	TextProfile       TextCategory = "profile"
	TextSearch        TextCategory = "search"
	TextSettings      TextCategory = "settings"
	TextUnknown       TextCategory = "unknown"
)

// TextCategories lists the OCR taxonomy in declaration order.
var TextCategories = []TextCategory{
	TextDM,
	TextFeed,
	TextReels,
	TextNotifications,
	TextProfile,
	TextSearch,
	TextSettings,
	TextUnknown,
}

// BlockDecision is the ephemeral verdict of a classifier. Confidence is only
// meaningful for the OCR path.
type BlockDecision struct {
	ShouldBlock bool
	Reason      string
	AppName     string
	Category    string
	Confidence  float64
}

// WindowInfo describes the focused desktop window.
type WindowInfo struct {
	WindowID  string
	PID       int
	ClassName string
	Title     string
}

// MaxRawTextRunes caps the OCR text kept on an analysis record.
const MaxRawTextRunes = 2000

// TruncateRawText cuts text to at most MaxRawTextRunes characters.
func TruncateRawText(text string) string {
	if len(text) <= MaxRawTextRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxRawTextRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// ScreenAnalysis is one OCR classification record kept for later review.
type ScreenAnalysis struct {
	Timestamp       time.Time
	AppHint         string
	Category        TextCategory
	Confidence      float64
	RawText         string
	TextHash        string
	MatchedPatterns []string
	ShouldBlock     bool
	ScreenshotPath  string
}

// Daemon represents the running monitor process.
type Daemon struct {
	PID        int
	StartedAt  time.Time
	AppVersion string
}

// DaemonStatus is the persisted liveness record of the monitor.
type DaemonStatus struct {
	PID           int
	LastHeartbeat time.Time
	AppVersion    string
	Mode          string
}

// SweepResult captures what happened during a single process-kill sweep.
type SweepResult struct {
	KilledPIDs []int
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// HostsResult captures the outcome of one enforcement update.
type HostsResult struct {
	Changed          bool
	Domains          []string
	PermissionDenied bool
}
