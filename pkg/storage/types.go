package storage

import "time"

// RunMetadata describes one import run. It is stored as metadata.json in the
// run directory.
type RunMetadata struct {
	// ID is the run id, a UUID unless supplied by the caller.
	ID string `json:"id" yaml:"id"`

	// Namespace is the warehouse namespace of the output table.
	Namespace string `json:"namespace" yaml:"namespace"`

	// Label is the human readable job name, e.g. host-scan-import-2026-10-17.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Input is the input locator as given on the command line.
	Input string `json:"input" yaml:"input"`

	// Output is the output table id (namespace:dataset.table).
	Output string `json:"output" yaml:"output"`

	// Sink is the sink driver that received the records.
	Sink string `json:"sink,omitempty" yaml:"sink,omitempty"`

	// Status is one of the RunStatus values.
	Status string `json:"status" yaml:"status"`

	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero" yaml:"completed_at,omitempty"`

	// Duration is the run duration in seconds. Only set when finished.
	Duration int `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`

	Counts RunCounts `json:"counts" yaml:"counts"`

	// StorageLocation is the run directory relative to the staging root.
	StorageLocation string `json:"storage_location,omitempty" yaml:"storage_location,omitempty"`

	// ErrorMessage contains the failure cause of a failed run.
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// RunCounts are the aggregate record statistics of a run.
type RunCounts struct {
	Lines           int `json:"lines" yaml:"lines"`
	Records         int `json:"records" yaml:"records"`
	Responses       int `json:"responses" yaml:"responses"`
	TLSResponses    int `json:"tls_responses" yaml:"tls_responses"`
	UnknownVersions int `json:"unknown_versions" yaml:"unknown_versions"`
	UnknownCiphers  int `json:"unknown_ciphers" yaml:"unknown_ciphers"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	// Status filters by run status (empty = all statuses).
	Status string

	// Output filters by output table substring (empty = all).
	Output string

	// Limit is the maximum number of results (0 = no limit).
	Limit int

	// Offset is the number of results to skip.
	Offset int
}

// RunUpdates specifies fields to update in a run. Nil fields are left alone.
type RunUpdates struct {
	Status          *string
	CompletedAt     *time.Time
	Duration        *int
	Counts          *RunCounts
	ErrorMessage    *string
	StorageLocation *string
}

// DataType names a file inside a run directory.
type DataType string

// Run data files.
const (
	DataTypeMetadata DataType = "metadata.json"

	// DataTypeSchema is the warehouse schema of the staged records.
	DataTypeSchema DataType = "schema.json"

	// DataTypeRecords holds one normalized record per line.
	DataTypeRecords DataType = "records.jsonl"

	// DataTypeRecordsZstd is DataTypeRecords compressed with zstd.
	DataTypeRecordsZstd DataType = "records.jsonl.zst"
)

// String returns the string representation of DataType.
func (d DataType) String() string {
	return string(d)
}

// IsValid checks if the DataType is valid.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypeMetadata, DataTypeSchema, DataTypeRecords, DataTypeRecordsZstd:
		return true
	default:
		return false
	}
}

// RunStatus represents valid run status values.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsValid checks if the RunStatus is valid.
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the run is finished.
func (s RunStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
