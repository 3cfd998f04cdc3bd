// Package rules owns the rule collection and derives the blocked-item set.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/condition"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// BlockedItems unions the items of every enabled rule whose condition is
// unmet. Items are lower-cased and de-duplicated; the result is sorted so
// rule order never affects it. unlocked may be nil.
func BlockedItems(rules []domain.Rule, snap domain.ProgressSnapshot, unlocked func(ruleID string) bool) []string {
	set := make(map[string]struct{})
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if unlocked != nil && unlocked(r.ID) {
			continue
		}
		if met, _ := condition.Evaluate(r.Condition, snap); met {
			continue
		}
		for _, item := range r.BlockedItems {
			item = strings.ToLower(strings.TrimSpace(item))
			if item != "" {
				set[item] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// RuleStatus is one rule's live evaluation for display.
type RuleStatus struct {
	Rule     domain.Rule
	Met      bool
	Progress string
	Unlocked bool
}

// Blocking reports whether the rule currently contributes its items.
func (s RuleStatus) Blocking() bool {
	return s.Rule.Enabled && !s.Unlocked && !s.Met
}

// Engine owns the ordered rule collection. Every mutation durably saves the
// whole collection before the in-memory copy changes.
type Engine struct {
	mu      sync.RWMutex
	rules   []domain.Rule
	repo    domain.RuleRepository
	unlocks domain.UnlockStore
	now     func() time.Time
	logger  *zap.Logger
}

// NewEngine creates an engine over repo. unlocks may be nil, in which case
// password rules can never be unlocked.
func NewEngine(repo domain.RuleRepository, unlocks domain.UnlockStore, logger *zap.Logger) *Engine {
	return NewEngineWithClock(repo, unlocks, time.Now, logger)
}

// NewEngineWithClock creates an engine with an injected clock (for testing).
func NewEngineWithClock(repo domain.RuleRepository, unlocks domain.UnlockStore, now func() time.Time, logger *zap.Logger) *Engine {
	return &Engine{
		repo:    repo,
		unlocks: unlocks,
		now:     now,
		logger:  logger,
	}
}

// Reload replaces the in-memory rules with the persisted collection.
// Records that fail validation or repeat an ID are skipped. On error the
// previous rules are kept.
func (e *Engine) Reload() error {
	loaded, err := e.repo.Load()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	valid := make([]domain.Rule, 0, len(loaded))
	seen := make(map[string]bool, len(loaded))
	for _, r := range loaded {
		n, err := Normalize(r)
		if err == nil && (r.ID == "" || seen[r.ID]) {
			err = fmt.Errorf("%w: missing or duplicate id", domain.ErrInvalidRule)
		}
		if err != nil {
			e.logger.Warn("skipping invalid rule", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		seen[n.ID] = true
		valid = append(valid, n)
	}

	e.mu.Lock()
	e.rules = valid
	e.mu.Unlock()
	return nil
}

// Rules returns a copy of the rule collection in insertion order.
func (e *Engine) Rules() []domain.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneRules(e.rules)
}

// Get returns the rule with id.
func (e *Engine) Get(id string) (domain.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i := indexOf(e.rules, id); i >= 0 {
		return cloneRule(e.rules[i]), nil
	}
	return domain.Rule{}, fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
}

// Add validates r, assigns an ID and creation time when missing, and persists it.
func (e *Engine) Add(r domain.Rule) (domain.Rule, error) {
	r, err := Normalize(r)
	if err != nil {
		return domain.Rule{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = e.now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if indexOf(e.rules, r.ID) >= 0 {
		return domain.Rule{}, fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidRule, r.ID)
	}
	next := append(cloneRules(e.rules), r)
	if err := e.commitLocked(next); err != nil {
		return domain.Rule{}, err
	}

	e.logger.Info("rule added",
		zap.String("id", r.ID),
		zap.String("rule", condition.DescribeRule(r)))
	return cloneRule(r), nil
}

// Remove deletes the rule with id and persists the collection.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOf(e.rules, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
	}
	next := cloneRules(e.rules)
	next = append(next[:i], next[i+1:]...)
	if err := e.commitLocked(next); err != nil {
		return err
	}

	e.logger.Info("rule removed", zap.String("id", id))
	return nil
}

// SetEnabled toggles the rule with id and persists the collection.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOf(e.rules, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
	}
	if e.rules[i].Enabled == enabled {
		return nil
	}
	next := cloneRules(e.rules)
	next[i].Enabled = enabled
	if err := e.commitLocked(next); err != nil {
		return err
	}

	e.logger.Info("rule toggled",
		zap.String("id", id),
		zap.Bool("enabled", enabled))
	return nil
}

// Unlock records a one-shot override for a password rule, valid for day.
// The caller verifies the password.
func (e *Engine) Unlock(id, day string) error {
	r, err := e.Get(id)
	if err != nil {
		return err
	}
	if r.Condition.Kind != domain.ConditionPassword {
		return fmt.Errorf("%w: rule %s is not password-protected", domain.ErrInvalidRule, id)
	}
	if e.unlocks == nil {
		return fmt.Errorf("no unlock store configured")
	}
	if err := e.unlocks.Unlock(id, day); err != nil {
		return fmt.Errorf("record unlock: %w", err)
	}
	e.logger.Info("rule unlocked", zap.String("id", id), zap.String("day", day))
	return nil
}

// BlockedItems evaluates the current rules against snap.
func (e *Engine) BlockedItems(snap domain.ProgressSnapshot) []string {
	return BlockedItems(e.Rules(), snap, e.unlockedOn(snap.Day()))
}

// Statuses evaluates each rule for display, in insertion order.
func (e *Engine) Statuses(snap domain.ProgressSnapshot) []RuleStatus {
	rules := e.Rules()
	unlocked := e.unlockedOn(snap.Day())

	out := make([]RuleStatus, 0, len(rules))
	for _, r := range rules {
		met, text := condition.Evaluate(r.Condition, snap)
		out = append(out, RuleStatus{
			Rule:     r,
			Met:      met,
			Progress: text,
			Unlocked: unlocked != nil && unlocked(r.ID),
		})
	}
	return out
}

// Rollover runs the day-change housekeeping: password unlocks are cleared
// and tomorrow rules created before today are disabled. It returns the number
// of rules disabled.
func (e *Engine) Rollover() (int, error) {
	if e.unlocks != nil {
		if err := e.unlocks.ClearUnlocks(); err != nil {
			e.logger.Warn("failed to clear unlocks", zap.Error(err))
		}
	}
	return e.ExpireTomorrowRules()
}

// ExpireTomorrowRules disables every enabled tomorrow rule created before the
// start of today. Unlocks are left alone so it is safe to run at startup.
func (e *Engine) ExpireTomorrowRules() (int, error) {
	now := e.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var expired []string
	for _, r := range e.Rules() {
		if r.Enabled && r.Condition.Kind == domain.ConditionTomorrow && r.CreatedAt.Before(startOfDay) {
			expired = append(expired, r.ID)
		}
	}
	for _, id := range expired {
		if err := e.SetEnabled(id, false); err != nil {
			return 0, fmt.Errorf("expire tomorrow rule %s: %w", id, err)
		}
		e.logger.Info("tomorrow rule expired", zap.String("id", id))
	}
	return len(expired), nil
}

func (e *Engine) unlockedOn(day string) func(string) bool {
	if e.unlocks == nil {
		return nil
	}
	return func(id string) bool {
		ok, err := e.unlocks.IsUnlocked(id, day)
		if err != nil {
			// An unreadable override keeps the rule blocking.
			e.logger.Warn("failed to read unlock state", zap.String("id", id), zap.Error(err))
			return false
		}
		return ok
	}
}

func (e *Engine) commitLocked(next []domain.Rule) error {
	if err := e.repo.Save(next); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	e.rules = next
	return nil
}

func indexOf(rules []domain.Rule, id string) int {
	for i, r := range rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneRules(rules []domain.Rule) []domain.Rule {
	out := make([]domain.Rule, len(rules))
	for i, r := range rules {
		out[i] = cloneRule(r)
	}
	return out
}

func cloneRule(r domain.Rule) domain.Rule {
	r.BlockedItems = append([]string(nil), r.BlockedItems...)
	if r.Condition.Location != nil {
		loc := *r.Condition.Location
		r.Condition.Location = &loc
	}
	return r
}
