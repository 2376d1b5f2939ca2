// Package bind turns command flags and loaded configuration into service
// parameters.
package bind

import (
	"errors"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/hostscan/hostscan/pkg/config"
	"github.com/hostscan/hostscan/pkg/importexec"
	"github.com/hostscan/hostscan/pkg/pipeline"
)

// Binding errors.
var (
	ErrInputRequired  = errors.New("--input is required")
	ErrOutputRequired = errors.New("--output is required")
)

// BindImportOptions builds importexec.Params for the import command.
//
// Flags read:
//   - --input: input locator (file, .gz/.zst/.zip, or - for stdin)
//   - --output: destination table, namespace:dataset.table
//   - --run-id: explicit run id (default: random UUID)
//   - --progress: emit a progress event every n records (0 = off)
//
// Pipeline, decoder, sink and label settings come from cfg, which already
// merged the --pipeline.*, --decode.*, --sink.* and --run.* flags.
func BindImportOptions(cmd *cobra.Command, cfg config.Config) (importexec.Params, error) {
	input, _ := cmd.Flags().GetString("input")
	out, _ := cmd.Flags().GetString("output")
	runID, _ := cmd.Flags().GetString("run-id")

	progress := 0
	if f := cmd.Flags().Lookup("progress"); f != nil {
		n, err := cast.ToIntE(f.Value.String())
		if err != nil || n < 0 {
			return importexec.Params{}, errors.New("--progress must be a non-negative record count")
		}
		progress = n
	}

	if input == "" {
		return importexec.Params{}, ErrInputRequired
	}
	if out == "" {
		return importexec.Params{}, ErrOutputRequired
	}

	return importexec.Params{
		Input:        input,
		Output:       out,
		RunID:        runID,
		Label:        cfg.Run.Label,
		Driver:       cfg.Sink.Driver,
		WarehouseDir: cfg.Sink.WarehouseDir,
		Compress:     cfg.Staging.Compress,
		Strict:       cfg.Decode.Strict,
		Pipeline: pipeline.Options{
			Workers:      cfg.Pipeline.Workers,
			Buffer:       cfg.Pipeline.Buffer,
			MaxLineBytes: cfg.Pipeline.MaxLineBytes,
		},
		ProgressEvery: progress,
	}, nil
}

// JoinOptions are the inputs of the join command.
type JoinOptions struct {
	Alexa  string
	DMOZ   string
	Scan   string
	Output string
	Strict bool
}

// BindJoinOptions reads --alexa, --dmoz, --scan and --output. The three
// inputs are required; output defaults to stdout.
func BindJoinOptions(cmd *cobra.Command, cfg config.Config) (JoinOptions, error) {
	opts := JoinOptions{Strict: cfg.Decode.Strict}
	opts.Alexa, _ = cmd.Flags().GetString("alexa")
	opts.DMOZ, _ = cmd.Flags().GetString("dmoz")
	opts.Scan, _ = cmd.Flags().GetString("scan")
	opts.Output, _ = cmd.Flags().GetString("output")

	var missing []error
	for flag, v := range map[string]string{"alexa": opts.Alexa, "dmoz": opts.DMOZ, "scan": opts.Scan} {
		if v == "" {
			missing = append(missing, errors.New("--"+flag+" is required"))
		}
	}
	if len(missing) > 0 {
		return JoinOptions{}, errors.Join(missing...)
	}
	if opts.Output == "" {
		opts.Output = "-"
	}
	return opts, nil
}
