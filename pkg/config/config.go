// Package config loads hostscan settings from defaults, a YAML file, the
// environment and command-line flags.
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager backed by the global Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{koanfInstance: k}
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "error",
			Format: "text",
			File:   "",
		},
		Decode: DecodeConfig{Strict: true},
		Sink: SinkConfig{
			Driver:       "sqlite",
			WarehouseDir: "warehouse",
		},
	}
}

// Load loads configuration from the default sources.
//
// Configuration precedence (highest to lowest):
//  1. --debug
//  2. Command-line flags (--pipeline.workers=8)
//  3. Environment variables (HOSTSCAN_PIPELINE_WORKERS=8)
//  4. Config file (YAML)
//  5. Default values
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil {
			debug = cast.ToBool(f.Value.String())
		}
	}
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags, debug))
}

// LoadWithSources loads the given sources, lowest priority first.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, src := range sources {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("error loading config from %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// GetValue retrieves a raw value by key path, nil when unset.
func (m *Manager) GetValue(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.Get(key)
}

// GetInt returns the value at key coerced to int.
func (m *Manager) GetInt(key string) int { return cast.ToInt(m.GetValue(key)) }

// GetBool returns the value at key coerced to bool.
func (m *Manager) GetBool(key string) bool { return cast.ToBool(m.GetValue(key)) }

// GetString returns the value at key coerced to string.
func (m *Manager) GetString(key string) string { return cast.ToString(m.GetValue(key)) }

// Validate checks values koanf cannot reject on its own.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unsupported %q", c.Log.Format)
	}
	switch c.Sink.Driver {
	case "sqlite", "jsonl":
	default:
		return fmt.Errorf("sink.driver: unsupported %q", c.Sink.Driver)
	}
	for key, v := range map[string]int{
		"pipeline.workers":               c.Pipeline.Workers,
		"pipeline.buffer":                c.Pipeline.Buffer,
		"pipeline.max_line_bytes":        c.Pipeline.MaxLineBytes,
		"staging.retention.max_age_days": c.Staging.Retention.MaxAgeDays,
		"staging.retention.max_runs":     c.Staging.Retention.MaxRuns,
	} {
		if v < 0 {
			return fmt.Errorf("%s: must not be negative", key)
		}
	}
	return nil
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider so
// every key is known.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"pipeline.workers":        def.Pipeline.Workers,
		"pipeline.buffer":         def.Pipeline.Buffer,
		"pipeline.max_line_bytes": def.Pipeline.MaxLineBytes,

		"decode.strict": def.Decode.Strict,

		"staging.dir":                    def.Staging.Dir,
		"staging.compress":               def.Staging.Compress,
		"staging.retention.max_age_days": def.Staging.Retention.MaxAgeDays,
		"staging.retention.max_runs":     def.Staging.Retention.MaxRuns,

		"sink.driver":        def.Sink.Driver,
		"sink.warehouse_dir": def.Sink.WarehouseDir,

		"run.label": def.Run.Label,
	}
}

// BindFlags defines the config-key flags shared by every command.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()

	var debug bool
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")

	flags.String("log.format", def.Log.Format, "Log format (text, json)")
	flags.String("log.file", def.Log.File, "Write logs to this file instead of stderr")
	flags.String("staging.dir", def.Staging.Dir, "Staging workspace directory (default: user cache dir)")
	flags.Int("staging.retention.max_age_days", 0, "Delete runs older than this many days (0 = keep)")
	flags.Int("staging.retention.max_runs", 0, "Keep at most this many runs per namespace (0 = all)")
}
