// Package storage keeps the staging workspace of hostscan imports.
//
// Every import is a run. A run owns a directory holding its metadata and the
// data files written by the staging sink:
//
//	{root}/
//	  runs/
//	    {namespace}/
//	      {run-id}/
//	        metadata.json
//	        schema.json
//	        records.jsonl | records.jsonl.zst
//
// The namespace is the warehouse namespace of the run's output table, so runs
// of different projects never collide.
package storage

import (
	"context"
	"io"
)

// Backend is the staging storage abstraction.
//
// Thread-safety: All methods must be safe for concurrent use.
type Backend interface {
	// Initialize creates the workspace directories.
	Initialize(ctx context.Context) error

	// Close releases resources held by the backend. Calling it twice is a no-op.
	Close() error

	// Runs returns the run store.
	Runs() RunStore

	// GarbageCollect removes runs that violate the retention policy:
	//   - runs older than MaxAgeDays
	//   - runs beyond MaxRuns per namespace (oldest deleted first)
	GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error)
}

// RunStore manages run metadata and run data files.
//
// Thread-safety: All methods must be safe for concurrent use.
type RunStore interface {
	// List returns the runs of a namespace matching filter, newest first.
	// An empty namespace lists every namespace.
	List(ctx context.Context, namespace string, filter RunFilter) ([]*RunMetadata, error)

	// Get returns the metadata of one run or a NotFoundError.
	Get(ctx context.Context, namespace, runID string) (*RunMetadata, error)

	// Create stores a new run. ID and Output are required.
	// Returns AlreadyExistsError if the run exists.
	Create(ctx context.Context, namespace string, run *RunMetadata) error

	// Update applies the non-nil fields of updates.
	Update(ctx context.Context, namespace, runID string, updates RunUpdates) error

	// Delete removes a run and all its data.
	Delete(ctx context.Context, namespace, runID string) error

	// ReadData opens a data file for reading. The caller closes it.
	ReadData(ctx context.Context, namespace, runID string, dataType DataType) (io.ReadCloser, error)

	// WriteData replaces a data file with the content of data.
	WriteData(ctx context.Context, namespace, runID string, dataType DataType, data io.Reader) error

	// CreateData truncates a data file and returns a writer holding its lock
	// until closed.
	CreateData(ctx context.Context, namespace, runID string, dataType DataType) (io.WriteCloser, error)

	// AppendData appends complete lines to a data file.
	AppendData(ctx context.Context, namespace, runID string, dataType DataType, data []byte) error

	// DeleteData removes a data file. Returns NotFoundError if it is absent.
	DeleteData(ctx context.Context, namespace, runID string, dataType DataType) error
}
