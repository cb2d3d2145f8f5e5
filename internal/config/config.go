package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "github.com/goccy/go-yaml"

	"coopsched/internal/sched"
)

// Config mirrors the YAML config file.
type Config struct {
	Algorithm      string                `yaml:"algorithm"`       // PRIORITY (by default)
	IdleSleep      string                `yaml:"idle_sleep"`      // 1ms (by default)
	NormalizeEvery int                   `yaml:"normalize_every"` // 100 (by default)
	TotalMemory    int                   `yaml:"total_memory"`    // 256 KiB (by default)
	DebugFlush     string                `yaml:"debug_flush"`     // 5s (by default)
	CSVLog         string                `yaml:"csv_log"`         // empty = disabled
	Log            LogConfig             `yaml:"log"`
	Tasks          map[string]TaskConfig `yaml:"tasks"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

// TaskConfig overrides the registration parameters of a named task.
type TaskConfig struct {
	Priority int    `yaml:"priority"`
	Interval string `yaml:"interval"`
	Paused   bool   `yaml:"paused"`
	Memory   int    `yaml:"memory"`
	Debug    bool   `yaml:"debug"`
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		Algorithm:      sched.AlgorithmPriority.String(),
		IdleSleep:      sched.DefaultIdleSleep.String(),
		NormalizeEvery: sched.DefaultNormalizeEvery,
		TotalMemory:    sched.DefaultTotalMemory,
		DebugFlush:     sched.DefaultDebugFlush.String(),
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads YAML over the defaults; an empty or missing path yields the
// defaults only. Malformed files and bad values are errors.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parse config: %w", err)
	}

	// sanity clamps
	if cfg.NormalizeEvery < 0 {
		cfg.NormalizeEvery = sched.DefaultNormalizeEvery
	}
	if cfg.TotalMemory <= 0 {
		cfg.TotalMemory = sched.DefaultTotalMemory
	}
	if strings.TrimSpace(cfg.Algorithm) == "" {
		cfg.Algorithm = sched.AlgorithmPriority.String()
	}

	if err := cfg.Validate(); err != nil {
		return defaultConfig(), err
	}
	return cfg, nil
}

// Validate checks the fields Load cannot clamp.
func (c Config) Validate() error {
	if _, err := sched.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("algorithm: %w", err)
	}
	if _, err := ParseDurationField("idle_sleep", c.IdleSleep); err != nil {
		return err
	}
	if _, err := ParseDurationField("debug_flush", c.DebugFlush); err != nil {
		return err
	}
	for name, t := range c.Tasks {
		if _, err := ParseDurationField("tasks."+name+".interval", t.Interval); err != nil {
			return err
		}
		if t.Memory < 0 {
			return fmt.Errorf("tasks.%s.memory: must be >= 0", name)
		}
	}
	return nil
}

// SchedulerAlgorithm returns the configured algorithm. Validate has
// already rejected unknown names.
func (c Config) SchedulerAlgorithm() sched.Algorithm {
	a, _ := sched.ParseAlgorithm(c.Algorithm)
	return a
}

// SchedulerOptions translates the file settings into scheduler options.
func (c Config) SchedulerOptions() []sched.Option {
	idle, _ := ParseDurationOrDefault("idle_sleep", c.IdleSleep, sched.DefaultIdleSleep)
	flush, _ := ParseDurationOrDefault("debug_flush", c.DebugFlush, sched.DefaultDebugFlush)
	return []sched.Option{
		sched.WithAlgorithm(c.SchedulerAlgorithm()),
		sched.WithIdleSleep(idle),
		sched.WithNormalizeEvery(c.NormalizeEvery),
		sched.WithTotalMemory(c.TotalMemory),
		sched.WithDebugFlush(flush),
	}
}

// Task returns the overrides for name merged over def.
func (c Config) Task(name string, def TaskConfig) TaskConfig {
	t, ok := c.Tasks[name]
	if !ok {
		return def
	}
	if t.Interval == "" {
		t.Interval = def.Interval
	}
	return t
}

// IntervalOr parses the interval, returning def when it is unset.
func (t TaskConfig) IntervalOr(def time.Duration) time.Duration {
	d, err := ParseDurationOrDefault("interval", t.Interval, def)
	if err != nil {
		return def
	}
	return d
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
