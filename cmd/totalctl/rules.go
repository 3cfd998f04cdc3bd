package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/condition"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage blocking rules",
}

var rulesAddCmd = &cobra.Command{
	Use:   "add ITEM [ITEM...]",
	Short: "Block items until a condition is met",
	Long: `Adds a rule blocking the given items until exactly one condition is met.

Items are site aliases (youtube, reddit), domains (news.ycombinator.com)
or app names (steam). Examples:

  totalctl rules add youtube reddit --steps 10000
  totalctl rules add twitter --time 17:00
  totalctl rules add steam --workout 30
  totalctl rules add netflix --location Gym --lat 51.5 --lng -0.12
  totalctl rules add instagram --tomorrow
  totalctl rules add tiktok --password`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRulesAdd,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules with their current progress",
	RunE:  runRulesList,
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove RULE_ID",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRemove,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable RULE_ID",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable RULE_ID",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], false) },
}

// conditionFlags are the mutually exclusive condition choices of rules add.
type conditionFlags struct {
	steps    int
	at       string
	workout  int
	location string
	lat      float64
	lng      float64
	radius   int
	tomorrow bool
	password bool
}

var addFlags conditionFlags

func init() {
	f := rulesAddCmd.Flags()
	f.IntVar(&addFlags.steps, "steps", 0, "Unblock after this many steps today")
	f.StringVar(&addFlags.at, "time", "", "Unblock at this time of day (HH:MM)")
	f.IntVar(&addFlags.workout, "workout", 0, "Unblock after this many workout minutes today")
	f.StringVar(&addFlags.location, "location", "", "Unblock when at this named place (needs --lat and --lng)")
	f.Float64Var(&addFlags.lat, "lat", 0, "Latitude of --location")
	f.Float64Var(&addFlags.lng, "lng", 0, "Longitude of --location")
	f.IntVar(&addFlags.radius, "radius", domain.DefaultRadiusMeters, "Radius of --location in meters")
	f.BoolVar(&addFlags.tomorrow, "tomorrow", false, "Block for the rest of today")
	f.BoolVar(&addFlags.password, "password", false, "Block until unlocked with the password")

	rulesCmd.AddCommand(rulesAddCmd, rulesListCmd, rulesRemoveCmd, rulesEnableCmd, rulesDisableCmd)
	rootCmd.AddCommand(rulesCmd)
}

// buildCondition turns the condition flags into a Condition. Exactly one
// condition flag must be set.
func buildCondition(c conditionFlags, flags *pflag.FlagSet) (domain.Condition, error) {
	var chosen []string
	for _, name := range []string{"steps", "time", "workout", "location", "tomorrow", "password"} {
		if flags.Changed(name) {
			chosen = append(chosen, "--"+name)
		}
	}
	if len(chosen) != 1 {
		return domain.Condition{}, fmt.Errorf("exactly one condition is required, got %d (%s)",
			len(chosen), strings.Join(chosen, ", "))
	}

	switch chosen[0] {
	case "--steps":
		return domain.Condition{Kind: domain.ConditionSteps, StepsTarget: c.steps}, nil
	case "--time":
		t, err := domain.ParseTimeOfDay(c.at)
		if err != nil {
			return domain.Condition{}, err
		}
		return domain.Condition{Kind: domain.ConditionTime, TimeTarget: t}, nil
	case "--workout":
		return domain.Condition{Kind: domain.ConditionWorkout, WorkoutMinutes: c.workout}, nil
	case "--location":
		if !flags.Changed("lat") || !flags.Changed("lng") {
			return domain.Condition{}, errors.New("--location needs --lat and --lng")
		}
		return domain.Condition{Kind: domain.ConditionLocation, Location: &domain.Location{
			Name:         c.location,
			Latitude:     c.lat,
			Longitude:    c.lng,
			RadiusMeters: c.radius,
		}}, nil
	case "--tomorrow":
		return domain.Condition{Kind: domain.ConditionTomorrow}, nil
	default:
		return domain.Condition{Kind: domain.ConditionPassword}, nil
	}
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	cond, err := buildCondition(addFlags, cmd.Flags())
	if err != nil {
		return err
	}

	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	engine, err := newRuleEngine(nil, logger)
	if err != nil {
		return err
	}

	r, err := engine.Add(domain.Rule{BlockedItems: args, Condition: cond, Enabled: true})
	if err != nil {
		return err
	}
	fmt.Printf("Added rule %s\n  %s\n", r.ID, condition.DescribeRule(r))
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	store, err := openStore()
	if err != nil {
		logger.Warn("encrypted store unavailable, unlocks not shown", zap.Error(err))
	} else {
		defer store.Close()
	}

	engine, err := newRuleEngine(store, logger)
	if err != nil {
		return err
	}
	snap := newProgressStore(logger).Snapshot()

	statuses := engine.Statuses(snap)
	fmt.Println(titleStyle.Render(fmt.Sprintf("=== Rules (%d) ===", len(statuses))))
	if len(statuses) == 0 {
		fmt.Println("No rules. Add one with 'totalctl rules add'.")
		return nil
	}

	for _, s := range statuses {
		fmt.Printf("\n%s  %s\n", verdict(s.Blocking()), condition.DescribeRule(s.Rule))
		fmt.Printf("  id: %s\n", faintStyle.Render(s.Rule.ID))
		fmt.Printf("  items: %s\n", strings.Join(s.Rule.BlockedItems, ", "))
		fmt.Printf("  progress: %s\n", s.Progress)
		switch {
		case !s.Rule.Enabled:
			fmt.Println("  state: disabled")
		case s.Unlocked:
			fmt.Println("  state: unlocked for today")
		}
	}
	return nil
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	engine, err := newRuleEngine(nil, logger)
	if err != nil {
		return err
	}
	if err := engine.Remove(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed rule %s\n", args[0])
	return nil
}

func setRuleEnabled(id string, enabled bool) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	engine, err := newRuleEngine(nil, logger)
	if err != nil {
		return err
	}
	if err := engine.SetEnabled(id, enabled); err != nil {
		return err
	}

	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	fmt.Printf("%s rule %s\n", state, id)
	return nil
}
