package importexec

import (
	"time"

	"github.com/hostscan/hostscan/pkg/pipeline"
)

// Params defines the input of one import run. Input and Output are required;
// everything else is passed through from configuration.
type Params struct {
	// Input is a file path (optionally .gz/.zst/.zip) or "-" for stdin.
	Input string
	// Output is the destination table, namespace:dataset.table.
	Output string

	RunID string
	Label string

	Driver       string
	WarehouseDir string
	Compress     bool
	Strict       bool

	Pipeline pipeline.Options

	// ProgressEvery emits a progress event after every n records (0 = off).
	ProgressEvery int
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Label     string
	Input     string
	Output    string
	Driver    string
	Status    string
	StartTime time.Time
	EndTime   time.Time
	Summary   pipeline.Summary
	Metrics   map[string]float64
}

// DefaultLabel is the run label used when none is configured.
func DefaultLabel(now time.Time) string {
	return "host-scan-import-" + now.Format("2006-01-02")
}
