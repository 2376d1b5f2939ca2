// Package ingest reads line-delimited host scan records.
//
// Inputs are local files, optionally compressed, or stdin. Each non-blank
// line holds one JSON record which Decoder turns into a record.RawRecord.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Stdio is the locator for stdin (inputs) or stdout (outputs).
const Stdio = "-"

// Compression is a container format recognised by file extension.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionZip  Compression = "zip"
)

// DetectCompression maps a file name to its compression by extension.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	case ".zip":
		return CompressionZip
	default:
		return CompressionNone
	}
}

// OpenFile opens path for reading and transparently decompresses it.
// A zip archive yields its first file entry.
func OpenFile(path string) (io.ReadCloser, error) {
	if path == Stdio {
		return io.NopCloser(os.Stdin), nil
	}

	if DetectCompression(path) == CompressionZip {
		return openZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	rc, err := NewReader(f, DetectCompression(path))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &stackedCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
}

// NewReader wraps r with a decompressor. Zip is not streamable and is
// rejected here; use OpenFile.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("compression %q cannot be streamed", c)
	}
}

func openZip(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("open %s!%s: %w", path, f.Name, err)
		}
		return &stackedCloser{Reader: rc, closers: []io.Closer{rc, zr}}, nil
	}
	_ = zr.Close()
	return nil, fmt.Errorf("open %s: archive has no file entries", path)
}

// CreateFile creates path for writing, compressing by extension. Closing the
// returned writer flushes the compressor and closes the file.
func CreateFile(path string) (io.WriteCloser, error) {
	if path == Stdio {
		return nopWriteCloser{os.Stdout}, nil
	}

	c := DetectCompression(path)
	if c == CompressionZip {
		return nil, fmt.Errorf("create %s: zip output is not supported", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	wc, err := NewWriter(f, c)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &stackedCloser{Writer: wc, closers: []io.Closer{wc, f}}, nil
}

// NewWriter wraps w with a compressor.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("compression %q cannot be streamed", c)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// stackedCloser closes its closers in order and reports the first error.
type stackedCloser struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
