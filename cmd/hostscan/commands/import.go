package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hostscan/hostscan/cmd/hostscan/internal/bind"
	"github.com/hostscan/hostscan/pkg/config"
	"github.com/hostscan/hostscan/pkg/importexec"
	"github.com/hostscan/hostscan/pkg/output"
	"github.com/hostscan/hostscan/pkg/sink"
	"github.com/hostscan/hostscan/pkg/storage"
)

// NewImportCommand defines 'import', which loads a host scan file into a
// warehouse table, replacing its contents.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import --input <file> --output <namespace:dataset.table>",
		Short: "Normalize host scan records and load them into a table",
		Long: `Reads line-delimited JSON host scan records, resolves TLS version and cipher
suite codes to names, turns header maps into name/value lists, and overwrites
the output table with the result. The table is created when missing.`,
		GroupID: "data",
		Args:    cobra.NoArgs,
		RunE:    runImportCommand,
	}

	def := config.DefaultConfig()
	cmd.Flags().StringP("input", "i", "", "Input file (.gz, .zst, .zip or plain), - for stdin (required)")
	cmd.Flags().StringP("output", "o", "", "Output table as namespace:dataset.table (required)")
	cmd.Flags().String("run-id", "", "Run id (default: random UUID)")
	cmd.Flags().Int("progress", 0, "Report progress every n records (0 = off)")

	cmd.Flags().Int("pipeline.workers", def.Pipeline.Workers, "Decode/normalize workers (0 = number of CPUs)")
	cmd.Flags().Int("pipeline.buffer", def.Pipeline.Buffer, "Records buffered between stages (0 = 4 per worker)")
	cmd.Flags().Int("pipeline.max_line_bytes", def.Pipeline.MaxLineBytes, "Longest accepted input line (0 = 16 MiB)")
	cmd.Flags().Bool("decode.strict", def.Decode.Strict, "Reject unknown record and response keys")
	cmd.Flags().String("sink.driver", def.Sink.Driver, "Sink driver (sqlite, jsonl)")
	cmd.Flags().String("sink.warehouse_dir", def.Sink.WarehouseDir, "Directory of the sqlite warehouse")
	cmd.Flags().Bool("staging.compress", def.Staging.Compress, "Compress staged jsonl records with zstd")
	cmd.Flags().String("run.label", def.Run.Label, "Run label (default: host-scan-import-<date>)")

	return cmd
}

func runImportCommand(cmd *cobra.Command, _ []string) error {
	out := outputFrom(cmd)
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := log.With().Str("command", "import").Logger()

	params, err := bind.BindImportOptions(cmd, cfg)
	if err != nil {
		return fail(out, "import", fmt.Errorf("%w: %w", errUsage, err))
	}
	out.Diag(output.LevelVerbose, "import options", map[string]any{
		"driver":  params.Driver,
		"workers": params.Pipeline.Workers,
		"strict":  params.Strict,
	})

	svc := importexec.NewService()
	if backend, err := openStaging(cmd); err != nil {
		if params.Driver == sink.DriverJSONL {
			return fail(out, "import", err)
		}
		logger.Warn().Err(err).Msg("Staging unavailable, run will not be recorded")
		out.Warning("staging unavailable, run will not be recorded")
	} else {
		svc = svc.WithStorage(backend)
		defer func() {
			if err := backend.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close staging backend")
			}
		}()
	}
	if params.ProgressEvery > 0 {
		svc = svc.WithProgressSink(&progressReporter{out: out})
	}

	out.Info(fmt.Sprintf("Importing %s into %s", params.Input, params.Output))
	res, runErr := svc.Run(ctx, params)
	if res != nil {
		printImportSummary(out, res)
	}
	if runErr != nil {
		return fail(out, "import", runErr)
	}
	return nil
}

// openStaging opens the staging backend configured by the root command.
func openStaging(cmd *cobra.Command) (storage.Backend, error) {
	ctx := cmd.Context()
	cfg, ok := storage.ConfigFromContext(ctx)
	if !ok {
		var err error
		if cfg, err = stagingConfig(config.FromContext(ctx)); err != nil {
			return nil, err
		}
	}
	backend, err := storage.NewBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create staging backend: %w", err)
	}
	if err := backend.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize staging: %w", err)
	}
	return backend, nil
}

type progressReporter struct {
	out output.Output
}

func (p *progressReporter) OnEvent(e importexec.ProgressEvent) {
	switch e.Phase {
	case importexec.PhaseRecord:
		p.out.Progress(e.Records, 0, "records written")
	case importexec.PhaseRun:
		p.out.Diag(output.LevelVerbose, "run "+e.Status, map[string]any{
			"run_id":  e.RunID,
			"message": e.Message,
		})
	}
}

func printImportSummary(out output.Output, res *importexec.Result) {
	st := res.Summary.Stats
	out.Table([]string{"Metric", "Value"}, [][]string{
		{"Run", res.RunID},
		{"Label", res.Label},
		{"Output", res.Output},
		{"Status", res.Status},
		{"Records", fmt.Sprint(res.Summary.Records)},
		{"Responses", fmt.Sprint(st.Responses)},
		{"TLS responses", fmt.Sprint(st.WithTLS)},
		{"Unknown TLS versions", fmt.Sprint(st.UnknownVersions)},
		{"Unknown cipher suites", fmt.Sprint(st.UnknownCiphers)},
		{"Duration", res.EndTime.Sub(res.StartTime).Round(time.Millisecond).String()},
	})
}
