// Package config loads totalctl settings from an optional YAML file and
// TOTALCTL_* environment variables on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
)

// EnvPrefix prefixes every environment override, e.g. TOTALCTL_INTERVALS_POLL.
const EnvPrefix = "TOTALCTL"

// DefaultConfigName is the config file looked up in $HOME when --config is unset.
const DefaultConfigName = ".totalctl"

// Intervals are the monitor loop periods.
type Intervals struct {
	Poll         time.Duration
	ProcessSweep time.Duration
	FitnessSync  time.Duration
	Window       time.Duration
	OCR          time.Duration
	Heartbeat    time.Duration
}

// Fitness locates the remote fitness document.
type Fitness struct {
	Enabled    bool
	BaseURL    string
	Project    string
	Collection string
	User       string
}

// Config is the resolved configuration.
type Config struct {
	DataDir         string
	RulesFile       string
	HostsFile       string
	LogLevel        string
	LogPath         string
	CommandTimeout  time.Duration
	Intervals       Intervals
	Fitness         Fitness
	WindowBlocking  bool
	OCRBlocking     bool
	KeepScreenshots bool

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string
}

// ProgressCacheFile is the fitness cache path under the data directory.
func (c Config) ProgressCacheFile() string {
	return filepath.Join(c.DataDir, infra.ProgressCacheFileName)
}

// ScreenshotDir is where OCR screenshots are written.
func (c Config) ScreenshotDir() string {
	return filepath.Join(c.DataDir, "screenshots")
}

// SetDefaults registers a default for every key. Path defaults come from the
// execution mode so root and user runs land in different places.
func SetDefaults(v *viper.Viper, mode *infra.ExecModeConfig) {
	v.SetDefault("data_dir", mode.DataDir)
	v.SetDefault("rules_file", "")
	v.SetDefault("hosts_file", mode.HostsPath)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("command_timeout", infra.DefaultCommandTimeout)

	v.SetDefault("intervals.poll", 2*time.Second)
	v.SetDefault("intervals.process_sweep", 5*time.Second)
	v.SetDefault("intervals.fitness_sync", 5*time.Minute)
	v.SetDefault("intervals.window", 1*time.Second)
	v.SetDefault("intervals.ocr", 2*time.Second)
	v.SetDefault("intervals.heartbeat", 30*time.Second)

	v.SetDefault("fitness.enabled", false)
	v.SetDefault("fitness.base_url", infra.DefaultFirestoreBaseURL)
	v.SetDefault("fitness.project", infra.DefaultFitnessProject)
	v.SetDefault("fitness.collection", infra.DefaultFitnessColl)
	v.SetDefault("fitness.user", infra.DefaultFitnessUser)

	v.SetDefault("window_blocking", false)
	v.SetDefault("ocr_blocking", false)
	v.SetDefault("keep_screenshots", false)
}

// Load reads cfgFile (or $HOME/.totalctl.yaml when empty) into v. A missing
// default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, cfgFile string, mode *infra.ExecModeConfig) (Config, error) {
	SetDefaults(v, mode)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return Config{}, fmt.Errorf("find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	dataDir, err := homedir.Expand(v.GetString("data_dir"))
	if err != nil {
		return Config{}, fmt.Errorf("expand data_dir: %w", err)
	}

	cfg := Config{
		DataDir:        dataDir,
		RulesFile:      v.GetString("rules_file"),
		HostsFile:      v.GetString("hosts_file"),
		LogLevel:       v.GetString("log.level"),
		LogPath:        v.GetString("log.path"),
		CommandTimeout: v.GetDuration("command_timeout"),
		Intervals: Intervals{
			Poll:         v.GetDuration("intervals.poll"),
			ProcessSweep: v.GetDuration("intervals.process_sweep"),
			FitnessSync:  v.GetDuration("intervals.fitness_sync"),
			Window:       v.GetDuration("intervals.window"),
			OCR:          v.GetDuration("intervals.ocr"),
			Heartbeat:    v.GetDuration("intervals.heartbeat"),
		},
		Fitness: Fitness{
			Enabled:    v.GetBool("fitness.enabled"),
			BaseURL:    v.GetString("fitness.base_url"),
			Project:    v.GetString("fitness.project"),
			Collection: v.GetString("fitness.collection"),
			User:       v.GetString("fitness.user"),
		},
		WindowBlocking:  v.GetBool("window_blocking"),
		OCRBlocking:     v.GetBool("ocr_blocking"),
		KeepScreenshots: v.GetBool("keep_screenshots"),
		ConfigFile:      v.ConfigFileUsed(),
	}

	if cfg.RulesFile == "" {
		cfg.RulesFile = filepath.Join(cfg.DataDir, infra.RulesFileName)
	} else if cfg.RulesFile, err = homedir.Expand(cfg.RulesFile); err != nil {
		return Config{}, fmt.Errorf("expand rules_file: %w", err)
	}
	if cfg.LogPath != "" {
		if cfg.LogPath, err = homedir.Expand(cfg.LogPath); err != nil {
			return Config{}, fmt.Errorf("expand log.path: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	intervals := map[string]time.Duration{
		"intervals.poll":          c.Intervals.Poll,
		"intervals.process_sweep": c.Intervals.ProcessSweep,
		"intervals.fitness_sync":  c.Intervals.FitnessSync,
		"intervals.window":        c.Intervals.Window,
		"intervals.ocr":           c.Intervals.OCR,
		"intervals.heartbeat":     c.Intervals.Heartbeat,
		"command_timeout":         c.CommandTimeout,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	return nil
}
