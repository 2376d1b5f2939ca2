package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes bounds a single record line. Scan records with long
// redirect chains and many headers run to a few hundred KiB.
const DefaultMaxLineBytes = 16 << 20

// Line is one non-blank input line. Number is 1-based and counts blank lines.
type Line struct {
	Number int
	Data   []byte
}

// Reader yields the non-blank lines of a source.
type Reader struct {
	sc     *bufio.Scanner
	number int
	err    error
}

// NewLineReader returns a Reader over r. maxLineBytes <= 0 selects
// DefaultMaxLineBytes.
func NewLineReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64<<10, maxLineBytes)), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next non-blank line. It returns false at end of input or on
// error; Err tells the two apart. The returned Data is owned by the caller.
func (r *Reader) Next() (Line, bool) {
	for r.sc.Scan() {
		r.number++
		data := bytes.TrimSpace(r.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		return Line{Number: r.number, Data: bytes.Clone(data)}, true
	}
	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			r.err = fmt.Errorf("line %d: %w", r.number+1, err)
		} else {
			r.err = fmt.Errorf("read line %d: %w", r.number+1, err)
		}
	}
	return Line{}, false
}

// Err returns the first read error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Number returns the number of the last line read.
func (r *Reader) Number() int {
	return r.number
}
