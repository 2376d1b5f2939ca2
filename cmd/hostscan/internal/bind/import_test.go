package bind

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/hostscan/hostscan/pkg/config"
	"github.com/hostscan/hostscan/pkg/importexec"
	"github.com/hostscan/hostscan/pkg/pipeline"
)

func newImportCmd(flags map[string]string) *cobra.Command {
	cmd := &cobra.Command{Use: "import"}
	cmd.Flags().String("input", "", "")
	cmd.Flags().String("output", "", "")
	cmd.Flags().String("run-id", "", "")
	cmd.Flags().Int("progress", 0, "")
	for k, v := range flags {
		_ = cmd.Flags().Set(k, v)
	}
	return cmd
}

func TestBindImportOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pipeline = config.PipelineConfig{Workers: 8, Buffer: 64, MaxLineBytes: 1 << 20}
	cfg.Sink.Driver = "jsonl"
	cfg.Staging.Compress = true
	cfg.Run.Label = "nightly"

	tests := []struct {
		name    string
		flags   map[string]string
		cfg     config.Config
		want    importexec.Params
		wantErr error
	}{
		{
			name:  "all flags set",
			flags: map[string]string{"input": "scan.jsonl.gz", "output": "p:d.t", "run-id": "r1", "progress": "1000"},
			cfg:   cfg,
			want: importexec.Params{
				Input:         "scan.jsonl.gz",
				Output:        "p:d.t",
				RunID:         "r1",
				Label:         "nightly",
				Driver:        "jsonl",
				WarehouseDir:  "warehouse",
				Compress:      true,
				Strict:        true,
				Pipeline:      pipeline.Options{Workers: 8, Buffer: 64, MaxLineBytes: 1 << 20},
				ProgressEvery: 1000,
			},
		},
		{
			name:  "defaults pass through",
			flags: map[string]string{"input": "-", "output": "p:d.t"},
			cfg:   config.DefaultConfig(),
			want: importexec.Params{
				Input:        "-",
				Output:       "p:d.t",
				Driver:       "sqlite",
				WarehouseDir: "warehouse",
				Strict:       true,
			},
		},
		{
			name:    "missing input",
			flags:   map[string]string{"output": "p:d.t"},
			cfg:     config.DefaultConfig(),
			wantErr: ErrInputRequired,
		},
		{
			name:    "missing output",
			flags:   map[string]string{"input": "x"},
			cfg:     config.DefaultConfig(),
			wantErr: ErrOutputRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BindImportOptions(newImportCmd(tt.flags), tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBindJoinOptions(t *testing.T) {
	newCmd := func(flags map[string]string) *cobra.Command {
		cmd := &cobra.Command{Use: "join"}
		for _, name := range []string{"alexa", "dmoz", "scan", "output"} {
			cmd.Flags().String(name, "", "")
		}
		for k, v := range flags {
			_ = cmd.Flags().Set(k, v)
		}
		return cmd
	}

	opts, err := BindJoinOptions(newCmd(map[string]string{"alexa": "a.zip", "dmoz": "d.rdf.gz", "scan": "s.gz"}), config.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, JoinOptions{Alexa: "a.zip", DMOZ: "d.rdf.gz", Scan: "s.gz", Output: "-", Strict: true}, opts)

	_, err = BindJoinOptions(newCmd(map[string]string{"alexa": "a.zip"}), config.DefaultConfig())
	require.ErrorContains(t, err, "--dmoz is required")
	require.ErrorContains(t, err, "--scan is required")
}
