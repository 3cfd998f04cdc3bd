// Package daemon implements the monitor: the scheduled loops that keep the
// blocked-item set enforced while progress changes.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// BlockedTitle is the notification title used when a screen is blocked.
const BlockedTitle = "TotalControl - BLOCKED"

// MonitorConfig holds monitor loop configuration.
type MonitorConfig struct {
	PollInterval        time.Duration // Rule evaluation and hosts reconcile
	SweepInterval       time.Duration // Process-kill sweep
	FitnessSyncInterval time.Duration // Remote fitness pull
	WindowInterval      time.Duration // Focused window check
	OCRInterval         time.Duration // Screenshot + OCR check
	HeartbeatInterval   time.Duration // Registry heartbeat

	FitnessSync    bool
	WindowBlocking bool
	OCRBlocking    bool
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:        2 * time.Second,
		SweepInterval:       5 * time.Second,
		FitnessSyncInterval: 5 * time.Minute,
		WindowInterval:      1 * time.Second,
		OCRInterval:         2 * time.Second,
		HeartbeatInterval:   30 * time.Second,
	}
}

// RuleEvaluator is the rule engine surface the monitor drives.
type RuleEvaluator interface {
	Reload() error
	Rollover() (int, error)
	ExpireTomorrowRules() (int, error)
	BlockedItems(snap domain.ProgressSnapshot) []string
}

// Enforcer applies the blocked-item set to the OS.
type Enforcer interface {
	Update(ctx context.Context, items []string) (domain.HostsResult, error)
	Sweep(ctx context.Context) domain.SweepResult
}

// ProgressTracker is the progress store surface the monitor drives.
type ProgressTracker interface {
	Load() error
	Snapshot() domain.ProgressSnapshot
	Day() string
	Rollover() bool
	SetRemote(steps, workoutMinutes int)
	Subscribe() (<-chan domain.ProgressSnapshot, func())
}

// WindowDecider classifies the focused window.
type WindowDecider interface {
	Decide(windowClass, title string) domain.BlockDecision
}

// ScreenAnalyzer runs the OCR pipeline.
type ScreenAnalyzer interface {
	Analyze(ctx context.Context) (domain.ScreenAnalysis, error)
	Record(analysis domain.ScreenAnalysis)
}

// MonitorDeps are the monitor's collaborators. Rules, Enforcer and Progress
// are required; the rest may be nil, which disables the loops using them.
type MonitorDeps struct {
	Rules    RuleEvaluator
	Enforcer Enforcer
	Progress ProgressTracker
	Registry domain.DaemonRegistry
	Fitness  domain.ProgressSource
	Windows  domain.WindowSource
	Decider  WindowDecider
	Screens  ScreenAnalyzer
	Notifier domain.Notifier
}

// Monitor runs every loop in one errgroup and stops them together.
type Monitor struct {
	config    MonitorConfig
	deps      MonitorDeps
	daemon    domain.Daemon
	newTicker TickerFactory
	logger    *zap.Logger

	// Owned by the rule loop.
	day string

	// Owned by the window loop.
	lastWindowID    string
	lastWindowBlock bool
	seenWindow      bool

	// Owned by the OCR loop.
	lastTextHash string
}

// NewMonitor creates a monitor using real tickers.
func NewMonitor(config MonitorConfig, deps MonitorDeps, daemon domain.Daemon, logger *zap.Logger) *Monitor {
	return NewMonitorWithTicker(config, deps, daemon, NewRealTicker, logger)
}

// NewMonitorWithTicker creates a monitor with an injected ticker factory (for testing).
func NewMonitorWithTicker(config MonitorConfig, deps MonitorDeps, daemon domain.Daemon, newTicker TickerFactory, logger *zap.Logger) *Monitor {
	return &Monitor{
		config:    config,
		deps:      deps,
		daemon:    daemon,
		newTicker: newTicker,
		logger:    logger,
	}
}

// Run starts every loop and blocks until ctx is canceled and all loops have
// returned.
func (m *Monitor) Run(ctx context.Context) error {
	if m.deps.Registry != nil {
		if err := m.deps.Registry.Register(m.daemon); err != nil {
			m.logger.Warn("failed to register monitor", zap.Error(err))
		}
		defer func() {
			if err := m.deps.Registry.Clear(); err != nil {
				m.logger.Warn("failed to clear registry", zap.Error(err))
			}
		}()
	}

	m.logger.Info("monitor started",
		zap.Int("pid", m.daemon.PID),
		zap.Bool("window_blocking", m.config.WindowBlocking && m.deps.Windows != nil),
		zap.Bool("ocr_blocking", m.config.OCRBlocking && m.deps.Screens != nil),
		zap.Bool("fitness_sync", m.config.FitnessSync && m.deps.Fitness != nil))

	m.startup(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return m.ruleLoop(ctx) })
	g.Go(func() error { return m.every(ctx, m.config.SweepInterval, m.sweep) })

	if m.config.FitnessSync && m.deps.Fitness != nil {
		g.Go(func() error {
			m.syncFitness(ctx)
			return m.every(ctx, m.config.FitnessSyncInterval, m.syncFitness)
		})
	}
	if m.config.WindowBlocking && m.deps.Windows != nil && m.deps.Decider != nil {
		g.Go(func() error { return m.every(ctx, m.config.WindowInterval, m.checkWindow) })
	}
	if m.config.OCRBlocking && m.deps.Screens != nil {
		g.Go(func() error { return m.every(ctx, m.config.OCRInterval, m.checkScreen) })
	}
	if m.deps.Registry != nil {
		g.Go(func() error { return m.every(ctx, m.config.HeartbeatInterval, m.heartbeat) })
	}

	err := g.Wait()
	m.logger.Info("monitor stopped")
	return err
}

// startup restores state and enforces once before the first tick.
func (m *Monitor) startup(ctx context.Context) {
	if err := m.deps.Progress.Load(); err != nil {
		m.logger.Warn("failed to load progress cache", zap.Error(err))
	}
	if err := m.deps.Rules.Reload(); err != nil {
		m.logger.Warn("failed to load rules", zap.Error(err))
	}
	if n, err := m.deps.Rules.ExpireTomorrowRules(); err != nil {
		m.logger.Warn("failed to expire tomorrow rules", zap.Error(err))
	} else if n > 0 {
		m.logger.Info("expired tomorrow rules", zap.Int("count", n))
	}
	m.day = m.deps.Progress.Snapshot().Day()

	m.enforce(ctx)
	m.sweep(ctx)
}

// ruleLoop re-evaluates on every poll tick and on every progress update.
func (m *Monitor) ruleLoop(ctx context.Context) error {
	updates, cancel := m.deps.Progress.Subscribe()
	defer cancel()

	ticker := m.newTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			m.reconcile(ctx)
		case _, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			m.enforce(ctx)
		}
	}
}

// every calls fn on each tick until ctx is canceled.
func (m *Monitor) every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := m.newTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			fn(ctx)
		}
	}
}

// reconcile picks up changes made by other processes, handles a day change
// and enforces the result.
func (m *Monitor) reconcile(ctx context.Context) {
	if err := m.deps.Progress.Load(); err != nil {
		m.logger.Warn("failed to reload progress cache", zap.Error(err))
	}
	if err := m.deps.Rules.Reload(); err != nil {
		m.logger.Warn("failed to reload rules, keeping previous", zap.Error(err))
	}

	if day := m.deps.Progress.Snapshot().Day(); day != m.day {
		m.rollover(day)
	}
	m.enforce(ctx)
}

func (m *Monitor) rollover(day string) {
	m.logger.Info("day changed", zap.String("from", m.day), zap.String("to", day))
	m.day = day
	m.deps.Progress.Rollover()

	n, err := m.deps.Rules.Rollover()
	if err != nil {
		m.logger.Warn("rule rollover failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("expired tomorrow rules", zap.Int("count", n))
	}
}

func (m *Monitor) enforce(ctx context.Context) {
	items := m.deps.Rules.BlockedItems(m.deps.Progress.Snapshot())

	result, err := m.deps.Enforcer.Update(ctx, items)
	if err != nil {
		m.logger.Warn("enforcement update failed", zap.Error(err))
		return
	}
	if result.Changed {
		m.logger.Info("blocked items applied",
			zap.Strings("items", items),
			zap.Int("domains", len(result.Domains)))
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	result := m.deps.Enforcer.Sweep(ctx)
	if len(result.KilledPIDs) > 0 {
		m.logger.Info("sweep completed",
			zap.Ints("killed", result.KilledPIDs),
			zap.Int64("duration_ms", result.DurationMs))
	}
}

func (m *Monitor) syncFitness(ctx context.Context) {
	steps, workout, err := m.deps.Fitness.FetchProgress(ctx, m.deps.Progress.Day())
	if err != nil {
		m.logger.Warn("fitness sync failed, keeping last values", zap.Error(err))
		return
	}
	m.logger.Debug("fitness synced", zap.Int("steps", steps), zap.Int("workout_mins", workout))
	m.deps.Progress.SetRemote(steps, workout)
}

// checkWindow acts only when the focused window or its verdict changes.
func (m *Monitor) checkWindow(ctx context.Context) {
	w, err := m.deps.Windows.ActiveWindow(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoWindow) {
			m.logger.Debug("active window lookup failed", zap.Error(err))
		}
		return
	}

	d := m.deps.Decider.Decide(w.ClassName, w.Title)
	if m.seenWindow && w.WindowID == m.lastWindowID && d.ShouldBlock == m.lastWindowBlock {
		return
	}
	m.seenWindow = true
	m.lastWindowID = w.WindowID
	m.lastWindowBlock = d.ShouldBlock

	m.logger.Debug("window changed",
		zap.String("app", d.AppName),
		zap.String("category", d.Category),
		zap.Bool("blocked", d.ShouldBlock))

	if d.ShouldBlock {
		m.notify(ctx, d.Reason)
	}
}

// checkScreen records and reports a screen only when its text changed.
func (m *Monitor) checkScreen(ctx context.Context) {
	a, err := m.deps.Screens.Analyze(ctx)
	if err != nil {
		m.logger.Debug("screen analysis failed", zap.Error(err))
		return
	}
	if a.TextHash == m.lastTextHash {
		return
	}
	m.lastTextHash = a.TextHash
	m.deps.Screens.Record(a)

	m.logger.Debug("screen changed",
		zap.String("app", a.AppHint),
		zap.String("category", string(a.Category)),
		zap.Float64("confidence", a.Confidence),
		zap.Bool("blocked", a.ShouldBlock))

	if a.ShouldBlock {
		m.notify(ctx, string(a.Category)+" screen blocked")
	}
}

func (m *Monitor) heartbeat(ctx context.Context) {
	if err := m.deps.Registry.UpdateHeartbeat(); err != nil {
		m.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

func (m *Monitor) notify(ctx context.Context, message string) {
	if m.deps.Notifier == nil {
		return
	}
	m.deps.Notifier.Notify(ctx, BlockedTitle, message, domain.UrgencyCritical)
}
