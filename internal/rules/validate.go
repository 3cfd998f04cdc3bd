package rules

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// Normalize checks r and returns the cleaned copy that may enter the store.
// Blocked items are trimmed and de-duplicated case-insensitively, keeping the
// first spelling. Every failure wraps domain.ErrInvalidRule.
func Normalize(r domain.Rule) (domain.Rule, error) {
	items := make([]string, 0, len(r.BlockedItems))
	seen := make(map[string]bool, len(r.BlockedItems))
	for _, item := range r.BlockedItems {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, item)
	}
	if len(items) == 0 {
		return domain.Rule{}, fmt.Errorf("%w: blocked items must not be empty", domain.ErrInvalidRule)
	}
	r.BlockedItems = items

	cond, err := normalizeCondition(r.Condition)
	if err != nil {
		return domain.Rule{}, err
	}
	r.Condition = cond
	return r, nil
}

func normalizeCondition(c domain.Condition) (domain.Condition, error) {
	// Only the payload for the declared kind survives.
	out := domain.Condition{Kind: c.Kind}

	switch c.Kind {
	case domain.ConditionSteps:
		if c.StepsTarget <= 0 {
			return out, fmt.Errorf("%w: steps target must be > 0", domain.ErrInvalidRule)
		}
		out.StepsTarget = c.StepsTarget

	case domain.ConditionTime:
		t := c.TimeTarget
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return out, fmt.Errorf("%w: time target %s out of range", domain.ErrInvalidRule, t)
		}
		out.TimeTarget = t

	case domain.ConditionWorkout:
		if c.WorkoutMinutes <= 0 {
			return out, fmt.Errorf("%w: workout minutes must be > 0", domain.ErrInvalidRule)
		}
		out.WorkoutMinutes = c.WorkoutMinutes

	case domain.ConditionLocation:
		if c.Location == nil {
			return out, fmt.Errorf("%w: location condition needs a location", domain.ErrInvalidRule)
		}
		loc := *c.Location
		loc.Name = strings.TrimSpace(loc.Name)
		if loc.Name == "" {
			return out, fmt.Errorf("%w: location needs a name", domain.ErrInvalidRule)
		}
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return out, fmt.Errorf("%w: location %q has invalid coordinates", domain.ErrInvalidRule, loc.Name)
		}
		if loc.RadiusMeters <= 0 {
			loc.RadiusMeters = domain.DefaultRadiusMeters
		}
		out.Location = &loc

	case domain.ConditionTomorrow, domain.ConditionPassword:

	default:
		return out, fmt.Errorf("%w: unknown condition type %q", domain.ErrInvalidRule, c.Kind)
	}
	return out, nil
}
