package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show or update today's progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show today's steps, workout and location",
	RunE:  runProgressShow,
}

var progressAddStepsCmd = &cobra.Command{
	Use:   "add-steps N",
	Short: "Add manually counted steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgressAddSteps,
}

var progressAddWorkoutCmd = &cobra.Command{
	Use:   "add-workout MINUTES",
	Short: "Add workout minutes",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgressAddWorkout,
}

var progressSetLocationCmd = &cobra.Command{
	Use:   "set-location [NAME]",
	Short: "Set the current location (or clear it with --clear)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProgressSetLocation,
}

var progressSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch today's totals from the remote fitness source",
	RunE:  runProgressSync,
}

var (
	locLat   float64
	locLng   float64
	locClear bool
)

func init() {
	progressSetLocationCmd.Flags().Float64Var(&locLat, "lat", 0, "Latitude")
	progressSetLocationCmd.Flags().Float64Var(&locLng, "lng", 0, "Longitude")
	progressSetLocationCmd.Flags().BoolVar(&locClear, "clear", false, "Clear the current location")

	progressCmd.AddCommand(progressShowCmd, progressAddStepsCmd, progressAddWorkoutCmd,
		progressSetLocationCmd, progressSyncCmd)
	rootCmd.AddCommand(progressCmd)
}

func firestoreConfig() infra.FirestoreConfig {
	return infra.FirestoreConfig{
		BaseURL:    cfg.Fitness.BaseURL,
		Project:    cfg.Fitness.Project,
		Collection: cfg.Fitness.Collection,
		User:       cfg.Fitness.User,
	}
}

func parseCount(arg, what string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", what, arg)
	}
	return n, nil
}

func runProgressShow(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	snap := newProgressStore(logger).Snapshot()
	printSnapshot(snap)
	return nil
}

func printSnapshot(snap domain.ProgressSnapshot) {
	fmt.Println(titleStyle.Render("=== Progress " + snap.Day() + " ==="))
	fmt.Printf("Steps:   %s\n", humanize.Comma(int64(snap.StepsToday)))
	fmt.Printf("Workout: %dmin\n", snap.WorkoutMinutesToday)
	if snap.CurrentLocation != nil {
		l := snap.CurrentLocation
		fmt.Printf("Location: %s (%.5f, %.5f)\n", l.Name, l.Latitude, l.Longitude)
	} else {
		fmt.Println("Location: unknown")
	}
	if !snap.LastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", humanize.Time(snap.LastSync))
	}
}

func runProgressAddSteps(cmd *cobra.Command, args []string) error {
	n, err := parseCount(args[0], "steps")
	if err != nil {
		return err
	}

	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	store := newProgressStore(logger)
	if err := store.AddSteps(n); err != nil {
		return err
	}
	fmt.Printf("Steps today: %s\n", humanize.Comma(int64(store.Snapshot().StepsToday)))
	return nil
}

func runProgressAddWorkout(cmd *cobra.Command, args []string) error {
	n, err := parseCount(args[0], "workout minutes")
	if err != nil {
		return err
	}

	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	store := newProgressStore(logger)
	if err := store.AddWorkout(n); err != nil {
		return err
	}
	fmt.Printf("Workout today: %dmin\n", store.Snapshot().WorkoutMinutesToday)
	return nil
}

func runProgressSetLocation(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	store := newProgressStore(logger)

	if locClear {
		store.SetLocation(nil)
		fmt.Println("Location cleared")
		return nil
	}
	if len(args) == 0 || !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
		return fmt.Errorf("set-location needs NAME, --lat and --lng (or --clear)")
	}

	store.SetLocation(&domain.Location{Name: args[0], Latitude: locLat, Longitude: locLng})
	fmt.Printf("Location set to %s (%.5f, %.5f)\n", args[0], locLat, locLng)
	return nil
}

func runProgressSync(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	store := newProgressStore(logger)
	source := infra.NewFirestoreSource(firestoreConfig(), logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	steps, workout, err := source.FetchProgress(ctx, store.Day())
	if err != nil {
		return err
	}
	store.SetRemote(steps, workout)

	printSnapshot(store.Snapshot())
	return nil
}
