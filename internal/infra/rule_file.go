package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// RulesFileName is the default rule file inside the data directory.
const RulesFileName = "rules.json"

type ruleDocument struct {
	Rules []json.RawMessage `json:"rules"`
}

type conditionRecord struct {
	Type           string           `json:"type"`
	StepsTarget    int              `json:"steps_target,omitempty"`
	TimeTarget     string           `json:"time_target,omitempty"`
	WorkoutMinutes int              `json:"workout_minutes,omitempty"`
	Location       *domain.Location `json:"location,omitempty"`
}

type ruleRecord struct {
	ID           string          `json:"id"`
	BlockedItems []string        `json:"blocked_items"`
	Condition    conditionRecord `json:"condition"`
	Enabled      *bool           `json:"enabled,omitempty"`
	CreatedAt    string          `json:"created_at,omitempty"`
}

// createdAtLayouts are accepted when reading created_at.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// RuleFile implements domain.RuleRepository as a JSON document
// {"rules": [...]}.
type RuleFile struct {
	path   string
	logger *zap.Logger
}

// NewRuleFile creates a rule repository at path.
func NewRuleFile(path string, logger *zap.Logger) *RuleFile {
	return &RuleFile{path: path, logger: logger}
}

// Path returns the rule file location.
func (f *RuleFile) Path() string {
	return f.path
}

// Load reads every rule. A missing file is an empty collection. Records that
// do not decode are skipped with a warning.
func (f *RuleFile) Load() ([]domain.Rule, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}

	rules := make([]domain.Rule, 0, len(doc.Rules))
	for i, raw := range doc.Rules {
		r, err := decodeRule(raw)
		if err != nil {
			f.logger.Warn("skipping malformed rule record",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Save atomically replaces the file with rules.
func (f *RuleFile) Save(rules []domain.Rule) error {
	doc := struct {
		Rules []ruleRecord `json:"rules"`
	}{Rules: make([]ruleRecord, 0, len(rules))}
	for _, r := range rules {
		doc.Rules = append(doc.Rules, encodeRule(r))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(f.path, append(data, '\n'), 0600)
}

func decodeRule(raw json.RawMessage) (domain.Rule, error) {
	var rec ruleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Rule{}, err
	}

	r := domain.Rule{
		ID:           rec.ID,
		BlockedItems: rec.BlockedItems,
		Enabled:      rec.Enabled == nil || *rec.Enabled,
		Condition: domain.Condition{
			Kind:           domain.ConditionKind(rec.Condition.Type),
			StepsTarget:    rec.Condition.StepsTarget,
			WorkoutMinutes: rec.Condition.WorkoutMinutes,
			Location:       rec.Condition.Location,
		},
	}

	if rec.Condition.TimeTarget != "" {
		t, err := domain.ParseTimeOfDay(rec.Condition.TimeTarget)
		if err != nil {
			return domain.Rule{}, err
		}
		r.Condition.TimeTarget = t
	} else if r.Condition.Kind == domain.ConditionTime {
		return domain.Rule{}, fmt.Errorf("time condition without time_target")
	}

	if rec.CreatedAt != "" {
		r.CreatedAt = parseCreatedAt(rec.CreatedAt)
	}
	return r, nil
}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func encodeRule(r domain.Rule) ruleRecord {
	enabled := r.Enabled
	rec := ruleRecord{
		ID:           r.ID,
		BlockedItems: r.BlockedItems,
		Enabled:      &enabled,
		Condition: conditionRecord{
			Type:           string(r.Condition.Kind),
			StepsTarget:    r.Condition.StepsTarget,
			WorkoutMinutes: r.Condition.WorkoutMinutes,
			Location:       r.Condition.Location,
		},
	}
	if r.Condition.Kind == domain.ConditionTime {
		rec.Condition.TimeTarget = r.Condition.TimeTarget.String()
	}
	if !r.CreatedAt.IsZero() {
		rec.CreatedAt = r.CreatedAt.Format(time.RFC3339Nano)
	}
	return rec
}

// atomicWriteFile writes data to a temp file next to path and renames it over.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Unique per process to avoid racing another writer's temp file
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

var _ domain.RuleRepository = (*RuleFile)(nil)
