package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to reset global variables for testing
func resetGlobalConfig() {
	k = nil
	once = sync.Once{}
}

func TestInitGlobalConfig_IsIdempotent(t *testing.T) {
	resetGlobalConfig()
	InitGlobalConfig()
	first := k
	InitGlobalConfig()
	assert.Same(t, first, k, "Koanf instance should not change on repeated InitGlobalConfig calls")
	assert.Equal(t, ".", k.Delim())
}

func TestNewManager_MultipleManagersShareGlobalKoanf(t *testing.T) {
	resetGlobalConfig()
	manager1 := NewManager()
	manager2 := NewManager()
	assert.Same(t, manager1.koanfInstance, manager2.koanfInstance)
}

func TestDefaultConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Decode.Strict)
	assert.Equal(t, "sqlite", cfg.Sink.Driver)
	assert.Zero(t, cfg.Pipeline.Workers)
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfigAsMap_CoversEveryKey(t *testing.T) {
	tmp := koanf.New(".")
	require.NoError(t, DefaultsSource{}.Load(tmp))

	var cfg Config
	require.NoError(t, tmp.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}))
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Len(t, DefaultConfigAsMap(), 14)
}

func TestManager_Load_LoadsDefaultsWhenNoFlags(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	require.NoError(t, manager.Load(nil, ""))
	assert.Equal(t, DefaultConfig(), manager.Get())
}

func TestManager_Load_File(t *testing.T) {
	resetGlobalConfig()
	path := filepath.Join(t.TempDir(), "hostscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  format: json
pipeline:
  workers: 12
  max_line_bytes: 1048576
staging:
  compress: true
  retention:
    max_runs: 5
sink:
  driver: jsonl
run:
  label: nightly
`), 0o644))

	manager := NewManager()
	require.NoError(t, manager.Load(nil, path))
	cfg := manager.Get()
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 12, cfg.Pipeline.Workers)
	assert.Equal(t, 1<<20, cfg.Pipeline.MaxLineBytes)
	assert.True(t, cfg.Staging.Compress)
	assert.Equal(t, 5, cfg.Staging.Retention.MaxRuns)
	assert.Equal(t, "jsonl", cfg.Sink.Driver)
	assert.Equal(t, "nightly", cfg.Run.Label)
	assert.Equal(t, "error", cfg.Log.Level, "unset keys keep their defaults")
}

func TestManager_Load_MissingExplicitFile(t *testing.T) {
	resetGlobalConfig()
	err := NewManager().Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestManager_Load_EnvVarsOverrideDefaults(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOSTSCAN_LOG_LEVEL", "warn")
	t.Setenv("HOSTSCAN_PIPELINE_MAX_LINE_BYTES", "4096")
	t.Setenv("HOSTSCAN_STAGING_RETENTION_MAX_AGE_DAYS", "30")
	t.Setenv("HOSTSCAN_DECODE_STRICT", "false")

	manager := NewManager()
	require.NoError(t, manager.Load(nil, ""))

	cfg := manager.Get()
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 4096, cfg.Pipeline.MaxLineBytes)
	assert.Equal(t, 30, cfg.Staging.Retention.MaxAgeDays)
	assert.False(t, cfg.Decode.Strict)
	assert.Equal(t, 30, manager.GetInt("staging.retention.max_age_days"))
}

func TestManager_Load_FlagsOverrideEnvVars(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOSTSCAN_LOG_FORMAT", "json")
	t.Setenv("HOSTSCAN_STAGING_DIR", "/from/env")

	flags := newTestFlagSet()
	require.NoError(t, flags.Set("log.format", "text"))

	manager := NewManager()
	require.NoError(t, manager.Load(flags, ""))

	cfg := manager.Get()
	assert.Equal(t, "text", cfg.Log.Format, "CLI flag should override ENV var")
	assert.Equal(t, "/from/env", cfg.Staging.Dir, "unchanged flags must not override ENV var")
}

func TestManager_Load_DebugFlagSetsLogLevelToDebug(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOSTSCAN_LOG_LEVEL", "error")
	flags := newTestFlagSet()
	require.NoError(t, flags.Set("debug", "true"))

	manager := NewManager()
	require.NoError(t, manager.Load(flags, ""))
	assert.Equal(t, "debug", manager.Get().Log.Level)
	assert.Equal(t, "debug", manager.GetString("log.level"))
}

func TestManager_Load_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"HOSTSCAN_LOG_FORMAT", "xml"},
		{"HOSTSCAN_SINK_DRIVER", "bigquery"},
		{"HOSTSCAN_PIPELINE_WORKERS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			resetGlobalConfig()
			t.Setenv(tt.env, tt.value)
			require.Error(t, NewManager().Load(nil, ""))
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log.level", EnvKey("HOSTSCAN_LOG_LEVEL"))
	assert.Equal(t, "sink.warehouse_dir", EnvKey("HOSTSCAN_SINK_WAREHOUSE_DIR"))
	assert.Equal(t, "staging.retention.max_runs", EnvKey("HOSTSCAN_STAGING_RETENTION_MAX_RUNS"))
	assert.Equal(t, "custom.thing", EnvKey("HOSTSCAN_CUSTOM_THING"))
}

func TestLoadWithSources_OrdersByPriority(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	err := manager.LoadWithSources([]ConfigSource{
		debugSource{},
		DefaultsSource{},
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", manager.Get().Log.Level)
}

func TestBindFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)

	debugFlag := flags.Lookup("debug")
	require.NotNil(t, debugFlag)
	assert.Equal(t, "false", debugFlag.DefValue)

	for _, name := range []string{"log.format", "log.file", "staging.dir", "staging.retention.max_runs"} {
		assert.NotNil(t, flags.Lookup(name), name)
		_, known := DefaultConfigAsMap()[name]
		assert.True(t, known, name)
	}
}

func newTestFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	flags.String("log.level", "error", "")
	return flags
}

func TestContext(t *testing.T) {
	assert.Equal(t, DefaultConfig(), FromContext(context.Background()))

	cfg := DefaultConfig()
	cfg.Run.Label = "nightly"
	assert.Equal(t, "nightly", FromContext(WithConfig(context.Background(), cfg)).Run.Label)
}
