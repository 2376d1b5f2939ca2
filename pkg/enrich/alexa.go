package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadAlexa reads a top-sites list of "rank,domain" rows. Every domain gets
// an entry with its rank and an empty topic list. A later row for the same
// domain replaces the earlier one.
func LoadAlexa(r io.Reader) (Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	idx := make(Index)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return idx, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read alexa list: %w", err)
		}
		if len(row) < 2 {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("alexa list line %d: want rank,domain", line)
		}

		rank, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("alexa list line %d: rank: %w", line, err)
		}
		domain := strings.TrimSpace(row[1])
		if domain == "" {
			continue
		}
		idx[domain] = &Entry{Domain: domain, Rank: rank, Topics: []string{}}
	}
}
