// Package main is the CLI entry point for totalctl.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/totalctl/internal/config"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
	"github.com/eliteGoblin/focusd/totalctl/internal/policy"
	"github.com/eliteGoblin/focusd/totalctl/internal/progress"
	"github.com/eliteGoblin/focusd/totalctl/internal/rules"
	"github.com/eliteGoblin/focusd/totalctl/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	cfgFile    string
	jsonOutput bool

	cfg      config.Config
	execMode *infra.ExecModeConfig
)

var (
	blockedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	allowedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "totalctl",
	Short: "Block distractions until you have earned them",
	Long: `totalctl blocks sites and apps until a condition is met: a step count,
a time of day, a workout, being at a place, tomorrow, or a password.

Blocking is done through a managed region of the hosts file and by killing
matching processes. It is a discipline tool, not a sandbox.`,
	Version:       Version,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: initConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.totalctl.yaml)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

// initConfig resolves the execution mode and loads configuration.
func initConfig(cmd *cobra.Command, args []string) error {
	execMode = infra.DetectExecMode()

	loaded, err := config.Load(viper.GetViper(), cfgFile, execMode)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// createLogger builds the daemon logger: JSON to log.path (or stderr) with
// ISO8601 timestamps.
func createLogger(c config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0700); err == nil {
			zc.OutputPaths = []string{c.LogPath}
			zc.ErrorOutputPaths = []string{c.LogPath}
		}
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(c.LogLevel); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is used by one-shot commands: warnings only, human readable.
func cliLogger() *zap.Logger {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openStore opens the encrypted store, creating its key on first use.
func openStore() (*infra.EncryptedStore, error) {
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("load store key: %w", err)
	}
	store, err := infra.NewEncryptedStore(cfg.DataDir, key)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func newRuleEngine(store *infra.EncryptedStore, logger *zap.Logger) (*rules.Engine, error) {
	var unlocks domain.UnlockStore
	if store != nil {
		unlocks = store
	}
	engine := rules.NewEngine(infra.NewRuleFile(cfg.RulesFile, logger), unlocks, logger)
	if err := engine.Reload(); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return engine, nil
}

func newProgressStore(logger *zap.Logger) *progress.Store {
	store := progress.NewStore(infra.NewProgressCacheFile(cfg.ProgressCacheFile()), logger)
	if err := store.Load(); err != nil {
		logger.Warn("failed to load progress cache", zap.Error(err))
	}
	return store
}

func newEnforcer(logger *zap.Logger) *usecase.EnforcementEngine {
	runner := infra.NewCommandRunner(cfg.CommandTimeout)
	return usecase.NewEnforcementEngine(
		infra.NewHostsFileWithPath(cfg.HostsFile),
		infra.NewDNSFlusher(runner, logger),
		infra.NewProcessManager(),
		policy.NewRegistry(),
		logger,
	)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("totalctl %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func verdict(blocked bool) string {
	if blocked {
		return blockedStyle.Render("BLOCKED")
	}
	return allowedStyle.Render("ALLOWED")
}
