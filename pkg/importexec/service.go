// Package importexec runs host scan imports: it records the run in the
// staging store, wires input, decoder, sink and pipeline together and reports
// progress.
package importexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hostscan/hostscan/pkg/ingest"
	"github.com/hostscan/hostscan/pkg/pipeline"
	"github.com/hostscan/hostscan/pkg/schema"
	"github.com/hostscan/hostscan/pkg/sink"
	"github.com/hostscan/hostscan/pkg/storage"
)

type ProgressSink interface {
	OnEvent(ProgressEvent)
}

type ProgressEvent struct {
	Phase     string
	RunID     string
	Status    string
	Message   string
	Records   int
	Timestamp time.Time
}

// Progress phases.
const (
	PhaseRun    = "run"
	PhaseRecord = "records"
)

type opener func(path string) (io.ReadCloser, error)

type sinkFactory func(ref sink.TableRef, opts sink.Options) (sink.Sink, error)

// Service runs imports.
type Service struct {
	open         opener
	newSink      sinkFactory
	progressSink ProgressSink
	storage      storage.Backend
	now          func() time.Time
}

// NewService builds a Service with default dependencies.
func NewService() *Service {
	return &Service{
		open:    ingest.OpenFile,
		newSink: sink.New,
		now:     time.Now,
	}
}

// WithProgressSink attaches a sink to receive progress notifications.
func (s *Service) WithProgressSink(ps ProgressSink) *Service {
	s.progressSink = ps
	return s
}

// WithStorage attaches the staging backend for run bookkeeping.
func (s *Service) WithStorage(backend storage.Backend) *Service {
	s.storage = backend
	return s
}

// WithOpener overrides how the input locator is opened.
func (s *Service) WithOpener(fn func(path string) (io.ReadCloser, error)) *Service {
	s.open = fn
	return s
}

// WithSinkFactory overrides sink construction.
func (s *Service) WithSinkFactory(fn func(ref sink.TableRef, opts sink.Options) (sink.Sink, error)) *Service {
	s.newSink = fn
	return s
}

// Run executes one import. The returned Result is non-nil whenever the run
// got far enough to be assigned an id, including failed runs.
func (s *Service) Run(ctx context.Context, params Params) (*Result, error) {
	if params.Input == "" {
		return nil, errors.New("input is required")
	}
	ref, err := sink.ParseTableRef(params.Output)
	if err != nil {
		return nil, err
	}

	startTime := s.now()
	runID := params.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	label := params.Label
	if label == "" {
		label = DefaultLabel(startTime)
	}

	logger := log.With().Str("component", "importexec").Str("run_id", runID).Logger()

	res := &Result{
		RunID:     runID,
		Label:     label,
		Input:     params.Input,
		Output:    ref.String(),
		Driver:    params.Driver,
		Status:    string(storage.StatusRunning),
		StartTime: startTime,
	}

	if s.storage != nil {
		metadata := &storage.RunMetadata{
			ID:        runID,
			Namespace: ref.Namespace,
			Label:     label,
			Input:     params.Input,
			Output:    ref.String(),
			Sink:      params.Driver,
			Status:    string(storage.StatusRunning),
			StartedAt: startTime,
		}
		if err := s.storage.Runs().Create(ctx, ref.Namespace, metadata); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		logger.Debug().Str("label", label).Msg("run created")
	}

	s.emit(PhaseRun, runID, "start", label, 0)
	summary, metrics, runErr := s.execute(ctx, ref, runID, params)
	res.Summary = summary
	res.Metrics = metrics
	res.EndTime = s.now()
	res.Status = statusFromError(runErr)

	s.finish(ctx, ref.Namespace, res, runErr)
	msg := fmt.Sprintf("records=%d", summary.Records)
	if runErr != nil {
		msg = runErr.Error()
	}
	s.emit(PhaseRun, runID, res.Status, msg, summary.Records)

	if runErr != nil {
		logger.Error().Err(runErr).Int("records", summary.Records).Msg("import failed")
		return res, runErr
	}
	logger.Info().
		Int("records", summary.Records).
		Int("responses", summary.Stats.Responses).
		Dur("duration", summary.Duration).
		Msg("import completed")
	return res, nil
}

func (s *Service) execute(ctx context.Context, ref sink.TableRef, runID string, params Params) (pipeline.Summary, map[string]float64, error) {
	in, err := s.open(params.Input)
	if err != nil {
		return pipeline.Summary{}, nil, err
	}
	defer func() { _ = in.Close() }()

	opts := sink.Options{
		Driver:       params.Driver,
		WarehouseDir: params.WarehouseDir,
		RunID:        runID,
		Compress:     params.Compress,
	}
	if s.storage != nil {
		opts.Runs = s.storage.Runs()
	}
	out, err := s.newSink(ref, opts)
	if err != nil {
		return pipeline.Summary{}, nil, err
	}

	p := pipeline.New(ingest.NewDecoder(params.Strict), out, schema.Build(), params.Pipeline)
	if params.ProgressEvery > 0 {
		p.WithProgress(params.ProgressEvery, func(sum pipeline.Summary) {
			s.emit(PhaseRecord, runID, "progress", "", sum.Records)
		})
	}

	summary, runErr := p.Run(ctx, in)
	metrics, err := p.Metrics().Snapshot()
	if err != nil {
		log.Warn().Str("component", "importexec").Err(err).Msg("failed to gather metrics")
	}
	return summary, metrics, runErr
}

func statusFromError(err error) string {
	if err != nil {
		return string(storage.StatusFailed)
	}
	return string(storage.StatusCompleted)
}

func (s *Service) emit(phase, runID, status, msg string, records int) {
	if s.progressSink == nil {
		return
	}
	s.progressSink.OnEvent(ProgressEvent{
		Phase:     phase,
		RunID:     runID,
		Status:    status,
		Message:   msg,
		Records:   records,
		Timestamp: s.now(),
	})
}

// finish stores the final status and counts of a run.
func (s *Service) finish(ctx context.Context, namespace string, res *Result, runErr error) {
	if s.storage == nil {
		return
	}

	status := res.Status
	completedAt := res.EndTime.UTC()
	duration := int(res.EndTime.Sub(res.StartTime).Seconds())
	counts := storage.RunCounts{
		Lines:           res.Summary.Lines,
		Records:         res.Summary.Records,
		Responses:       res.Summary.Stats.Responses,
		TLSResponses:    res.Summary.Stats.WithTLS,
		UnknownVersions: res.Summary.Stats.UnknownVersions,
		UnknownCiphers:  res.Summary.Stats.UnknownCiphers,
	}
	updates := storage.RunUpdates{
		Status:      &status,
		CompletedAt: &completedAt,
		Duration:    &duration,
		Counts:      &counts,
	}
	if runErr != nil {
		msg := runErr.Error()
		updates.ErrorMessage = &msg
	}

	// The run context may already be cancelled; the final status is still recorded.
	if err := s.storage.Runs().Update(context.WithoutCancel(ctx), namespace, res.RunID, updates); err != nil {
		log.Warn().
			Str("component", "importexec").
			Str("run_id", res.RunID).
			Err(err).
			Msg("Failed to update run status in storage")
	}
}
