// Package pipeline drives records from a line source through decoding and
// normalization into a sink.
//
// One goroutine reads lines, a pool of workers decodes and normalizes them,
// and one goroutine writes to the sink. With more than one worker the sink
// sees records in no particular order. The first decode or sink error cancels
// the run and the sink is closed without commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hostscan/hostscan/pkg/ingest"
	"github.com/hostscan/hostscan/pkg/normalize"
	"github.com/hostscan/hostscan/pkg/record"
	"github.com/hostscan/hostscan/pkg/schema"
	"github.com/hostscan/hostscan/pkg/sink"
)

// Options tune the pipeline. Zero values pick defaults.
type Options struct {
	// Workers is the number of decode/normalize goroutines (default GOMAXPROCS).
	Workers int
	// Buffer is the capacity of the channels between stages (default 4 per worker).
	Buffer int
	// MaxLineBytes bounds one input line (default ingest.DefaultMaxLineBytes).
	MaxLineBytes int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Buffer <= 0 {
		o.Buffer = 4 * o.Workers
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = ingest.DefaultMaxLineBytes
	}
	return o
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	Lines    int
	Records  int
	Stats    normalize.Stats
	Duration time.Duration
}

// ProgressFunc is called from the sink goroutine with the running summary.
type ProgressFunc func(Summary)

// Pipeline is a configured import. It is used for a single Run.
type Pipeline struct {
	decoder *ingest.Decoder
	sink    sink.Sink
	table   schema.Table
	opts    Options
	metrics *Metrics

	progressEvery int
	progress      ProgressFunc
}

// New builds a pipeline writing to out with the given table schema.
func New(dec *ingest.Decoder, out sink.Sink, table schema.Table, opts Options) *Pipeline {
	return &Pipeline{
		decoder: dec,
		sink:    out,
		table:   table,
		opts:    opts.withDefaults(),
		metrics: NewMetrics(),
	}
}

// WithMetrics replaces the pipeline's metrics.
func (p *Pipeline) WithMetrics(m *Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithProgress calls fn after every n written records and once at the end.
func (p *Pipeline) WithProgress(n int, fn ProgressFunc) *Pipeline {
	p.progressEvery = n
	p.progress = fn
	return p
}

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Options returns the effective options.
func (p *Pipeline) Options() Options { return p.opts }

type result struct {
	rec   record.Record
	stats normalize.Stats
}

// Run reads src to the end and writes every record to the sink. The sink is
// opened, committed on success, and always closed.
func (p *Pipeline) Run(ctx context.Context, src io.Reader) (summary Summary, err error) {
	logger := log.With().Str("component", "pipeline").Logger()
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	if err := p.sink.Open(ctx, p.table); err != nil {
		_ = p.sink.Close()
		return summary, fmt.Errorf("open sink: %w", err)
	}
	defer func() {
		if cerr := p.sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan ingest.Line, p.opts.Buffer)
	results := make(chan result, p.opts.Buffer)
	reader := ingest.NewLineReader(src, p.opts.MaxLineBytes)

	g.Go(func() error {
		defer close(lines)
		for {
			l, ok := reader.Next()
			if !ok {
				return reader.Err()
			}
			p.metrics.Lines.Inc()
			select {
			case lines <- l:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for range p.opts.Workers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return p.work(gctx, lines, results)
		})
	}
	g.Go(func() error {
		workers.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		for res := range results {
			if err := p.sink.Write(gctx, res.rec); err != nil {
				return fmt.Errorf("write record %q: %w", res.rec.Host, err)
			}
			p.metrics.observe(res.stats)
			summary.Records++
			summary.Stats.Add(res.stats)
			if p.progress != nil && p.progressEvery > 0 && summary.Records%p.progressEvery == 0 {
				p.progress(summary)
			}
		}
		return nil
	})

	err = g.Wait()
	summary.Lines = reader.Number()
	if err != nil {
		logger.Debug().Err(err).Int("records", summary.Records).Msg("pipeline aborted")
		return summary, err
	}

	if err := p.sink.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit sink: %w", err)
	}
	if p.progress != nil {
		p.progress(summary)
	}
	logger.Debug().Int("records", summary.Records).Int("lines", summary.Lines).Msg("pipeline finished")
	return summary, nil
}

func (p *Pipeline) work(ctx context.Context, lines <-chan ingest.Line, results chan<- result) error {
	for l := range lines {
		raw, err := p.decoder.DecodeLine(l)
		if err != nil {
			p.metrics.DecodeFailures.Inc()
			return err
		}

		begin := time.Now()
		rec := normalize.Transform(raw)
		p.metrics.TransformSeconds.Observe(time.Since(begin).Seconds())

		select {
		case results <- result{rec: rec, stats: normalize.Inspect(rec)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// IsDecodeError reports whether a Run error was caused by a malformed line.
func IsDecodeError(err error) bool {
	var de *ingest.DecodeError
	return errors.As(err, &de)
}
