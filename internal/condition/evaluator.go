// Package condition evaluates rule unlock conditions against live progress.
// Everything here is pure: no clocks, no I/O. The snapshot carries "now".
package condition

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// metersPerDegree is the planar approximation used for geofences.
const metersPerDegree = 111000.0

// Evaluate reports whether cond is met for snap and a progress text.
// Password conditions are never met here; unlocks are handled by the rule engine.
func Evaluate(cond domain.Condition, snap domain.ProgressSnapshot) (bool, string) {
	switch cond.Kind {
	case domain.ConditionSteps:
		current, target := snap.StepsToday, cond.StepsTarget
		return current >= target, fmt.Sprintf("%s/%s (%d%%)",
			humanize.Comma(int64(current)), humanize.Comma(int64(target)), percent(current, target))

	case domain.ConditionTime:
		return evaluateTime(cond.TimeTarget, snap)

	case domain.ConditionWorkout:
		current, target := snap.WorkoutMinutesToday, cond.WorkoutMinutes
		return current >= target, fmt.Sprintf("%d/%dmin", current, target)

	case domain.ConditionLocation:
		return evaluateLocation(cond.Location, snap.CurrentLocation)

	case domain.ConditionTomorrow:
		return false, "Blocked until tomorrow"

	case domain.ConditionPassword:
		return false, "Enter password to unlock"
	}
	return false, "Unknown"
}

// percent is clamped to [0,100]; a zero target counts as complete.
func percent(current, target int) int {
	if target <= 0 {
		return 100
	}
	pct := current * 100 / target
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func evaluateTime(target domain.TimeOfDay, snap domain.ProgressSnapshot) (bool, string) {
	deadline := target.On(snap.Now)
	if !snap.Now.Before(deadline) {
		return true, "Time reached"
	}
	mins := int(deadline.Sub(snap.Now).Minutes())
	if mins >= 60 {
		return false, fmt.Sprintf("%dh %dm left", mins/60, mins%60)
	}
	return false, fmt.Sprintf("%dm left", mins)
}

func evaluateLocation(target, current *domain.Location) (bool, string) {
	if current == nil {
		return false, "Location unknown"
	}
	if target == nil {
		return false, "Unknown"
	}
	met := Distance(*current, *target) <= float64(radius(*target))
	if met {
		return true, "At " + target.Name
	}
	return false, "Not at " + target.Name
}

// Distance approximates meters between two points as Euclidean distance on
// raw lat/lng deltas. Adequate for geofences of a few hundred meters.
func Distance(a, b domain.Location) float64 {
	dLat := a.Latitude - b.Latitude
	dLng := a.Longitude - b.Longitude
	return math.Sqrt(dLat*dLat+dLng*dLng) * metersPerDegree
}

func radius(l domain.Location) int {
	if l.RadiusMeters <= 0 {
		return domain.DefaultRadiusMeters
	}
	return l.RadiusMeters
}

// Describe renders the "UNTIL" half of a rule.
func Describe(cond domain.Condition) string {
	switch cond.Kind {
	case domain.ConditionSteps:
		return humanize.Comma(int64(cond.StepsTarget)) + " steps"
	case domain.ConditionTime:
		return cond.TimeTarget.String()
	case domain.ConditionWorkout:
		return fmt.Sprintf("%dmin workout", cond.WorkoutMinutes)
	case domain.ConditionLocation:
		if cond.Location == nil {
			return "at ?"
		}
		return "at " + cond.Location.Name
	case domain.ConditionTomorrow:
		return "tomorrow"
	case domain.ConditionPassword:
		return "password"
	}
	return "unknown"
}

// DescribeRule renders "NO a, b, c +N UNTIL <condition>".
func DescribeRule(r domain.Rule) string {
	shown := r.BlockedItems
	extra := 0
	if len(shown) > 3 {
		extra = len(shown) - 3
		shown = shown[:3]
	}
	items := strings.Join(shown, ", ")
	if extra > 0 {
		items += fmt.Sprintf(" +%d", extra)
	}
	return fmt.Sprintf("NO %s UNTIL %s", items, Describe(r.Condition))
}
