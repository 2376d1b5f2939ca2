// Package sink delivers normalized records to a warehouse table.
//
// A sink is used in one pass: Open with the table schema, Write every record,
// then Commit. Close releases resources and discards uncommitted work. The
// table is fully overwritten on every run and created if it is absent.
package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hostscan/hostscan/pkg/record"
	"github.com/hostscan/hostscan/pkg/schema"
	"github.com/hostscan/hostscan/pkg/storage"
)

// Sink is the write side of one import run. Write is called from a single
// goroutine.
type Sink interface {
	// Open creates the table if absent and truncates it.
	Open(ctx context.Context, table schema.Table) error
	Write(ctx context.Context, rec record.Record) error
	// Commit makes the written records visible.
	Commit(ctx context.Context) error
	// Close releases resources. Uncommitted records are discarded.
	Close() error
}

// Drivers accepted by New.
const (
	DriverSQLite = "sqlite"
	DriverJSONL  = "jsonl"
)

// ErrInvalidTableRef is returned for malformed table ids.
var ErrInvalidTableRef = errors.New("invalid table reference")

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// TableRef identifies a warehouse table as namespace:dataset.table.
type TableRef struct {
	Namespace string
	Dataset   string
	Table     string
}

// ParseTableRef parses "namespace:dataset.table".
func ParseTableRef(s string) (TableRef, error) {
	ns, rest, ok := strings.Cut(s, ":")
	if !ok {
		return TableRef{}, fmt.Errorf("%w %q: want namespace:dataset.table", ErrInvalidTableRef, s)
	}
	dataset, table, ok := strings.Cut(rest, ".")
	if !ok {
		return TableRef{}, fmt.Errorf("%w %q: missing dataset", ErrInvalidTableRef, s)
	}

	ref := TableRef{Namespace: ns, Dataset: dataset, Table: table}
	if err := ref.Validate(); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

// Validate checks every part of the reference.
func (r TableRef) Validate() error {
	if !identRe.MatchString(r.Namespace) {
		return fmt.Errorf("%w: bad namespace %q", ErrInvalidTableRef, r.Namespace)
	}
	if !identRe.MatchString(r.Dataset) {
		return fmt.Errorf("%w: bad dataset %q", ErrInvalidTableRef, r.Dataset)
	}
	if !tableRe.MatchString(r.Table) {
		return fmt.Errorf("%w: bad table %q", ErrInvalidTableRef, r.Table)
	}
	return nil
}

func (r TableRef) String() string {
	return r.Namespace + ":" + r.Dataset + "." + r.Table
}

// SchemaMismatchError is returned by Open when an existing table has a
// different shape than the schema.
type SchemaMismatchError struct {
	Table string
	Want  []string
	Got   []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("table %s exists with a different schema: want columns %v, got %v", e.Table, e.Want, e.Got)
}

// Options configure New.
type Options struct {
	// Driver is DriverSQLite or DriverJSONL.
	Driver string

	// WarehouseDir is the root of sqlite databases.
	WarehouseDir string

	// Runs and RunID locate the staging directory of the jsonl driver.
	Runs  storage.RunStore
	RunID string

	// Compress writes the jsonl records with zstd.
	Compress bool
}

// New returns the sink selected by opts.Driver.
func New(ref TableRef, opts Options) (Sink, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(opts.Driver) {
	case DriverSQLite, "":
		if opts.WarehouseDir == "" {
			return nil, errors.New("sqlite sink needs a warehouse directory")
		}
		return NewSQLiteSink(ref, opts.WarehouseDir), nil
	case DriverJSONL:
		if opts.Runs == nil || opts.RunID == "" {
			return nil, errors.New("jsonl sink needs a run store and a run id")
		}
		return NewStagingSink(ref, opts.Runs, opts.RunID, opts.Compress), nil
	default:
		return nil, fmt.Errorf("unknown sink driver %q (want %s or %s)", opts.Driver, DriverSQLite, DriverJSONL)
	}
}
