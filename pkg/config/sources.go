package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by the env source.
const EnvPrefix = "HOSTSCAN_"

// Source priorities. Higher values override lower ones.
const (
	PriorityDefaults = 0
	PriorityFile     = 10
	PriorityEnv      = 20
	PriorityFlags    = 30
	PriorityDebug    = 40
)

// ConfigSource is one layer of configuration.
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultsSource loads DefaultConfigAsMap.
type DefaultsSource struct{}

func (DefaultsSource) Name() string  { return "defaults" }
func (DefaultsSource) Priority() int { return PriorityDefaults }
func (DefaultsSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

// FileSource loads a YAML file. A missing file is only an error when
// Required is set.
type FileSource struct {
	Path     string
	Required bool
}

func (s FileSource) Name() string  { return "file " + s.Path }
func (s FileSource) Priority() int { return PriorityFile }
func (s FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !s.Required {
			return nil
		}
		return err
	}
	return k.Load(file.Provider(s.Path), yaml.Parser())
}

// EnvSource loads HOSTSCAN_* variables. HOSTSCAN_STAGING_RETENTION_MAX_RUNS
// maps to staging.retention.max_runs: known keys are matched first, anything
// else has every underscore turned into a dot.
type EnvSource struct{}

func (EnvSource) Name() string  { return "env" }
func (EnvSource) Priority() int { return PriorityEnv }
func (EnvSource) Load(k *koanf.Koanf) error {
	return k.Load(env.Provider(EnvPrefix, ".", EnvKey), nil)
}

var envKeys = func() map[string]string {
	m := make(map[string]string)
	for key := range DefaultConfigAsMap() {
		m[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	return m
}()

// EnvKey converts an environment variable name into a config key.
func EnvKey(name string) string {
	name = strings.ToUpper(strings.TrimPrefix(name, EnvPrefix))
	if key, ok := envKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// FlagSource loads flags the user changed. Flag names are config keys
// (--log.level); other flags are ignored.
type FlagSource struct {
	Flags *pflag.FlagSet
}

func (s FlagSource) Name() string  { return "flags" }
func (s FlagSource) Priority() int { return PriorityFlags }
func (s FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags == nil {
		return nil
	}
	known := DefaultConfigAsMap()
	return k.Load(posflag.ProviderWithFlag(s.Flags, ".", k, func(f *pflag.Flag) (string, any) {
		if _, ok := known[f.Name]; !ok || !f.Changed {
			return "", nil
		}
		return f.Name, posflag.FlagVal(s.Flags, f)
	}), nil)
}

// debugSource forces debug logging.
type debugSource struct{}

func (debugSource) Name() string  { return "debug" }
func (debugSource) Priority() int { return PriorityDebug }
func (debugSource) Load(k *koanf.Koanf) error {
	if err := k.Set("log.level", "debug"); err != nil {
		return fmt.Errorf("set debug level: %w", err)
	}
	return nil
}

// DefaultSources returns the standard chain: defaults, the config file,
// environment and flags. debug adds a final layer forcing log.level=debug.
func DefaultSources(configFile string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	sources := []ConfigSource{
		DefaultsSource{},
		FileSource{Path: configFile, Required: configFile != ""},
		EnvSource{},
		FlagSource{Flags: flags},
	}
	if debug {
		sources = append(sources, debugSource{})
	}
	return sources
}
