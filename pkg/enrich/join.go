package enrich

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/hostscan/hostscan/pkg/ingest"
)

// JoinStats counts the outcome of a Join.
type JoinStats struct {
	Records int
	Matched int
	// Unused is the number of index entries no scan record claimed.
	Unused int
}

// Join copies every scan record from scan to out, one JSON object per line,
// merging in the index entry of the record's host. An entry is consumed by
// the first record that matches it, so idx shrinks as Join runs.
func Join(ctx context.Context, scan io.Reader, out io.Writer, idx Index, dec *ingest.Decoder) (JoinStats, error) {
	var st JoinStats
	reader := ingest.NewLineReader(scan, 0)
	w := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line, ok := reader.Next()
		if !ok {
			break
		}
		rec, err := dec.DecodeLine(line)
		if err != nil {
			return st, err
		}
		if e, ok := idx[rec.Host]; ok {
			e.Apply(&rec.HostMetadata)
			delete(idx, rec.Host)
			st.Matched++
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return st, fmt.Errorf("encode %q: %w", rec.Host, err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return st, fmt.Errorf("write joined record: %w", err)
		}
		st.Records++
	}
	if err := reader.Err(); err != nil {
		return st, err
	}
	if err := w.Flush(); err != nil {
		return st, fmt.Errorf("write joined record: %w", err)
	}

	st.Unused = len(idx)
	log.Debug().Str("component", "enrich").
		Int("records", st.Records).
		Int("matched", st.Matched).
		Msg("join finished")
	return st, nil
}
