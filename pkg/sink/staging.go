package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hostscan/hostscan/pkg/ingest"
	"github.com/hostscan/hostscan/pkg/record"
	"github.com/hostscan/hostscan/pkg/schema"
	"github.com/hostscan/hostscan/pkg/storage"
)

// StagingSink writes the schema and the records of a run into the run's
// staging directory as schema.json and records.jsonl(.zst).
type StagingSink struct {
	ref      TableRef
	runs     storage.RunStore
	runID    string
	compress bool

	file      io.WriteCloser
	enc       io.WriteCloser
	buf       *bufio.Writer
	committed bool
}

// NewStagingSink returns a sink staging into run runID of namespace ref.Namespace.
func NewStagingSink(ref TableRef, runs storage.RunStore, runID string, compress bool) *StagingSink {
	return &StagingSink{ref: ref, runs: runs, runID: runID, compress: compress}
}

// DataType returns the records file the sink writes.
func (s *StagingSink) DataType() storage.DataType {
	if s.compress {
		return storage.DataTypeRecordsZstd
	}
	return storage.DataTypeRecords
}

// Open writes schema.json and truncates the records file.
func (s *StagingSink) Open(ctx context.Context, table schema.Table) error {
	if s.file != nil {
		return errors.New("staging sink already open")
	}
	data, err := table.Render(schema.FormatJSON, "")
	if err != nil {
		return err
	}
	if err := s.runs.WriteData(ctx, s.ref.Namespace, s.runID, storage.DataTypeSchema, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("stage schema: %w", err)
	}

	f, err := s.runs.CreateData(ctx, s.ref.Namespace, s.runID, s.DataType())
	if err != nil {
		return fmt.Errorf("stage records: %w", err)
	}
	c := ingest.CompressionNone
	if s.compress {
		c = ingest.CompressionZstd
	}
	enc, err := ingest.NewWriter(f, c)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stage records: %w", err)
	}

	s.file = f
	s.enc = enc
	s.buf = bufio.NewWriterSize(enc, 256<<10)
	return nil
}

// Write appends one record as a JSON line.
func (s *StagingSink) Write(ctx context.Context, rec record.Record) error {
	if s.buf == nil {
		return errors.New("staging sink is not open")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Host, err)
	}
	data = append(data, '\n')
	if _, err := s.buf.Write(data); err != nil {
		return fmt.Errorf("stage record: %w", err)
	}
	return nil
}

// Commit flushes and closes the records file.
func (s *StagingSink) Commit(ctx context.Context) error {
	if s.buf == nil {
		return errors.New("staging sink is not open")
	}
	if s.committed {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	if err := s.closeFiles(); err != nil {
		return fmt.Errorf("close records: %w", err)
	}
	s.committed = true
	return nil
}

// Close closes the records file if Commit did not and removes it, so an
// aborted run leaves no partial records behind. schema.json stays.
func (s *StagingSink) Close() error {
	if s.committed || s.file == nil {
		return nil
	}
	err := s.closeFiles()
	s.buf = nil
	if derr := s.runs.DeleteData(context.Background(), s.ref.Namespace, s.runID, s.DataType()); derr != nil && !storage.IsNotFound(derr) {
		err = errors.Join(err, fmt.Errorf("discard records: %w", derr))
	}
	return err
}

func (s *StagingSink) closeFiles() error {
	var errs []error
	if s.enc != nil {
		errs = append(errs, s.enc.Close())
		s.enc = nil
	}
	if s.file != nil {
		errs = append(errs, s.file.Close())
		s.file = nil
	}
	return errors.Join(errs...)
}
