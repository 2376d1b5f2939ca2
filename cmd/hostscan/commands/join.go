package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hostscan/hostscan/cmd/hostscan/internal/bind"
	"github.com/hostscan/hostscan/pkg/config"
	"github.com/hostscan/hostscan/pkg/enrich"
	"github.com/hostscan/hostscan/pkg/ingest"
)

// NewJoinCommand defines 'join', which merges Alexa ranks and DMOZ directory
// data into host scan records.
func NewJoinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join --alexa <top-sites.csv.zip> --dmoz <content.rdf.u8.gz> --scan <scan.jsonl.gz>",
		Short: "Merge Alexa and DMOZ metadata into host scan records",
		Long: `Loads the Alexa top sites list, attaches the DMOZ directory entries of each
listed domain's home page, and writes every scan record with the metadata of
its host merged in. Each domain's metadata is attached to the first record
for that host only.`,
		GroupID: "data",
		Args:    cobra.NoArgs,
		RunE:    runJoinCommand,
	}

	cmd.Flags().StringP("alexa", "a", "", "Alexa top sites CSV (rank,domain), optionally zipped")
	cmd.Flags().StringP("dmoz", "d", "", "DMOZ RDF content dump, optionally gzipped")
	cmd.Flags().StringP("scan", "s", "", "Host scan records")
	cmd.Flags().StringP("output", "o", "-", "Joined records (.gz/.zst compress), - for stdout")
	cmd.Flags().Bool("decode.strict", config.DefaultConfig().Decode.Strict, "Reject unknown record and response keys")
	return cmd
}

func runJoinCommand(cmd *cobra.Command, _ []string) (err error) {
	out := outputFrom(cmd)
	ctx := cmd.Context()
	logger := log.With().Str("command", "join").Logger()

	opts, err := bind.BindJoinOptions(cmd, config.FromContext(ctx))
	if err != nil {
		return fail(out, "join", fmt.Errorf("%w: %w", errUsage, err))
	}

	idx, err := loadIndex(opts)
	if err != nil {
		return fail(out, "join", err)
	}
	logger.Info().Int("domains", len(idx)).Msg("metadata index loaded")

	scan, err := ingest.OpenFile(opts.Scan)
	if err != nil {
		return fail(out, "join", err)
	}
	defer func() { _ = scan.Close() }()

	dst, err := ingest.CreateFile(opts.Output)
	if err != nil {
		return fail(out, "join", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fail(out, "join", cerr)
		}
	}()

	if opts.Output != ingest.Stdio {
		out.Info(fmt.Sprintf("Joining %s into %s", opts.Scan, opts.Output))
	}
	st, err := enrich.Join(ctx, scan, dst, idx, ingest.NewDecoder(opts.Strict))
	if err != nil {
		return fail(out, "join", err)
	}

	logger.Info().
		Int("records", st.Records).
		Int("matched", st.Matched).
		Int("unused", st.Unused).
		Msg("join finished")
	if opts.Output != ingest.Stdio {
		out.Table([]string{"Metric", "Value"}, [][]string{
			{"Records", fmt.Sprint(st.Records)},
			{"Matched hosts", fmt.Sprint(st.Matched)},
			{"Unused domains", fmt.Sprint(st.Unused)},
		})
	}
	return nil
}

func loadIndex(opts bind.JoinOptions) (enrich.Index, error) {
	alexa, err := ingest.OpenFile(opts.Alexa)
	if err != nil {
		return nil, err
	}
	defer func() { _ = alexa.Close() }()

	idx, err := enrich.LoadAlexa(alexa)
	if err != nil {
		return nil, err
	}

	dmoz, err := ingest.OpenFile(opts.DMOZ)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dmoz.Close() }()

	matched, err := enrich.ApplyDMOZ(dmoz, idx)
	if err != nil {
		return nil, err
	}
	log.Info().Str("command", "join").Int("matched", matched).Msg("dmoz pages matched")
	return idx, nil
}
