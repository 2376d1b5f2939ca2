package config

// Config is the full hostscan configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Decode   DecodeConfig   `koanf:"decode"`
	Staging  StagingConfig  `koanf:"staging"`
	Sink     SinkConfig     `koanf:"sink"`
	Run      RunConfig      `koanf:"run"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
	File   string `koanf:"file"`
}

// PipelineConfig is passed through to the import pipeline. Zero means default.
type PipelineConfig struct {
	Workers      int `koanf:"workers"`
	Buffer       int `koanf:"buffer"`
	MaxLineBytes int `koanf:"max_line_bytes"`
}

type DecodeConfig struct {
	Strict bool `koanf:"strict"`
}

// StagingConfig locates the run workspace. An empty Dir selects the user
// cache directory.
type StagingConfig struct {
	Dir       string          `koanf:"dir"`
	Compress  bool            `koanf:"compress"`
	Retention RetentionConfig `koanf:"retention"`
}

type RetentionConfig struct {
	MaxAgeDays int `koanf:"max_age_days"`
	MaxRuns    int `koanf:"max_runs"`
}

// SinkConfig selects the warehouse driver.
type SinkConfig struct {
	Driver       string `koanf:"driver"`
	WarehouseDir string `koanf:"warehouse_dir"`
}

type RunConfig struct {
	// Label names runs; empty selects host-scan-import-<date>.
	Label string `koanf:"label"`
}
