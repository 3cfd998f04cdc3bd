package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/classifier"
	"github.com/eliteGoblin/focusd/totalctl/internal/daemon"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
	"github.com/eliteGoblin/focusd/totalctl/internal/rules"
	"github.com/eliteGoblin/focusd/totalctl/internal/usecase"
)

// staleHeartbeat is how old a heartbeat may be before the monitor counts as dead.
const staleHeartbeat = 2 * time.Minute

var runCmd = &cobra.Command{
	Use:   daemon.RunCommand,
	Short: "Run the monitor in the foreground",
	Long: `Runs the monitor loops in the foreground: rule evaluation and hosts
reconcile, the process sweep, and optionally fitness sync, window watch and
OCR watch. Stop it with Ctrl-C. The hosts region is left in place on exit.`,
	RunE: runMonitor,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check monitor status and what is blocked right now",
	RunE:  runStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the managed region from the hosts file",
	Long: `Removes every totalctl entry from the hosts file. A running monitor
will write them back on its next poll if rules still block.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(runCmd, startCmd, statusCmd, clearCmd)
}

// monitorConfig maps configuration onto the monitor's loop settings.
func monitorConfig() daemon.MonitorConfig {
	mc := daemon.DefaultMonitorConfig()
	mc.PollInterval = cfg.Intervals.Poll
	mc.SweepInterval = cfg.Intervals.ProcessSweep
	mc.FitnessSyncInterval = cfg.Intervals.FitnessSync
	mc.WindowInterval = cfg.Intervals.Window
	mc.OCRInterval = cfg.Intervals.OCR
	mc.HeartbeatInterval = cfg.Intervals.Heartbeat
	mc.FitnessSync = cfg.Fitness.Enabled
	mc.WindowBlocking = cfg.WindowBlocking
	mc.OCRBlocking = cfg.OCRBlocking
	return mc
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting monitor",
		zap.String("version", Version),
		zap.String("mode", execMode.Mode.String()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("hosts_file", cfg.HostsFile),
		zap.String("config", cfg.ConfigFile))

	runner := infra.NewCommandRunner(cfg.CommandTimeout)
	progressStore := newProgressStore(logger)
	windows := infra.NewX11WindowSource(runner)

	deps := daemon.MonitorDeps{
		Progress: progressStore,
		Enforcer: newEnforcer(logger),
		Decider:  classifier.NewWindowClassifier(),
		Notifier: infra.NewDesktopNotifier(runner, logger),
		Windows:  windows,
	}

	// The encrypted store backs unlocks, the registry and history. The monitor
	// still enforces rules without it.
	var unlocks domain.UnlockStore
	var history domain.AnalysisHistory
	store, err := openStore()
	if err != nil {
		logger.Warn("encrypted store unavailable, running without unlocks or history", zap.Error(err))
		deps.Registry = infra.NewFileRegistry(cfg.DataDir)
	} else {
		defer store.Close()
		unlocks = store
		history = store
		deps.Registry = store
	}

	deps.Rules = rules.NewEngine(infra.NewRuleFile(cfg.RulesFile, logger), unlocks, logger)

	if cfg.Fitness.Enabled {
		deps.Fitness = infra.NewFirestoreSource(firestoreConfig(), logger)
	}
	if cfg.OCRBlocking {
		deps.Screens = usecase.NewScreenAnalyzer(
			infra.NewScreenCapturer(cfg.ScreenshotDir(), runner, logger),
			infra.NewTesseractExtractor(runner, logger),
			windows,
			classifier.NewTextClassifier(),
			history,
			cfg.KeepScreenshots,
			logger,
		)
	}

	d := domain.Daemon{
		PID:        os.Getpid(),
		StartedAt:  time.Now(),
		AppVersion: Version,
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return daemon.NewMonitor(monitorConfig(), deps, d, logger).Run(ctx)
}

// monitorAlive reports whether status describes a live monitor.
func monitorAlive(status *domain.DaemonStatus, pm domain.ProcessManager, now time.Time) bool {
	if status == nil || !pm.IsRunning(status.PID) {
		return false
	}
	return now.Sub(status.LastHeartbeat) <= staleHeartbeat
}

// registryFor returns the registry a monitor using store would write to.
func registryFor(store *infra.EncryptedStore) domain.DaemonRegistry {
	if store != nil {
		return store
	}
	return infra.NewFileRegistry(cfg.DataDir)
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Printf("Execution mode: %s\n", execMode.Mode)
	if !execMode.IsRoot {
		fmt.Println("Running as user - hosts blocking needs root, process and window blocking still work")
	}

	store, err := openStore()
	if err == nil {
		defer store.Close()
	}
	status, err := registryFor(store).Status()
	if err != nil {
		return fmt.Errorf("read monitor status: %w", err)
	}
	if monitorAlive(status, infra.NewProcessManager(), time.Now()) {
		fmt.Printf("totalctl monitor is already running (pid %d)\n", status.PID)
		return nil
	}

	var extra []string
	if cfgFile != "" {
		extra = append(extra, "--config", cfgFile)
	}
	pid, err := daemon.StartDaemon(cfg.DataDir, extra...)
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	// Wait a moment for the monitor to register
	time.Sleep(500 * time.Millisecond)

	fmt.Println(titleStyle.Render("\n=== totalctl Started ==="))
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Data: %s\n", cfg.DataDir)
	fmt.Printf("Output: %s/%s\n", cfg.DataDir, daemon.LogFileName)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	fmt.Println(titleStyle.Render("=== totalctl Status ==="))

	store, err := openStore()
	if err != nil {
		fmt.Printf("Store: unavailable (%v)\n", err)
	} else {
		defer store.Close()
	}

	status, err := registryFor(store).Status()
	switch {
	case err != nil:
		fmt.Printf("Monitor: unknown (%v)\n", err)
	case monitorAlive(status, infra.NewProcessManager(), time.Now()):
		fmt.Printf("Monitor: %s (pid %d, %s)\n", allowedStyle.Render("RUNNING"), status.PID, status.Mode)
		fmt.Printf("Last heartbeat: %s\n", humanize.Time(status.LastHeartbeat))
	default:
		fmt.Printf("Monitor: %s\n", blockedStyle.Render("NOT RUNNING"))
		fmt.Println("\nRun 'totalctl start' to enable blocking.")
	}

	fmt.Printf("Execution mode: %s\n", execMode.Mode)
	fmt.Printf("Hosts file: %s\n", cfg.HostsFile)

	engine, err := newRuleEngine(store, logger)
	if err != nil {
		return err
	}
	snap := newProgressStore(logger).Snapshot()
	items := engine.BlockedItems(snap)

	if len(items) == 0 {
		fmt.Println("\nBlocked now: nothing")
	} else {
		fmt.Printf("\nBlocked now: %s\n", strings.Join(items, ", "))
	}

	fmt.Println("\nRules:")
	statuses := engine.Statuses(snap)
	if len(statuses) == 0 {
		fmt.Println("  (none)")
	}
	for _, s := range statuses {
		fmt.Printf("  %s  %s  %s\n", verdict(s.Blocking()), s.Rule.ID, s.Progress)
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	result, err := newEnforcer(logger).Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("clear hosts file: %w", err)
	}
	if result.PermissionDenied {
		return fmt.Errorf("permission denied writing %s, run with sudo", cfg.HostsFile)
	}
	if result.Changed {
		fmt.Println("Removed totalctl entries from the hosts file")
	} else {
		fmt.Println("Hosts file has no totalctl entries")
	}
	return nil
}
