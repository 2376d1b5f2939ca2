package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hostscan/hostscan/pkg/output"
	"github.com/hostscan/hostscan/pkg/storage"
)

// NewRunsCommand groups the staging run bookkeeping commands.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "runs",
		Short:   "Inspect and clean up recorded import runs",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsGCCommand())
	return cmd
}

func newRunsListCommand() *cobra.Command {
	var (
		namespace string
		status    string
		limit     int
		format    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := outputFrom(cmd)
			if status != "" && !storage.RunStatus(status).IsValid() {
				return fail(out, "list runs", fmt.Errorf("%w: unknown status %q", errUsage, status))
			}

			backend, err := openStaging(cmd)
			if err != nil {
				return fail(out, "list runs", err)
			}
			defer func() { _ = backend.Close() }()

			runs, err := backend.Runs().List(cmd.Context(), namespace, storage.RunFilter{Status: status, Limit: limit})
			if err != nil {
				return fail(out, "list runs", err)
			}

			switch strings.ToLower(format) {
			case "yaml":
				data, err := yaml.Marshal(runs)
				if err != nil {
					return fail(out, "list runs", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "table", "":
			default:
				return fail(out, "list runs", fmt.Errorf("%w: unknown format %q", errUsage, format))
			}

			if len(runs) == 0 {
				out.Info("No runs recorded.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.Namespace,
					r.Label,
					r.Output,
					r.Status,
					fmt.Sprint(r.Counts.Records),
					r.StartedAt.Local().Format(time.DateTime),
				})
			}
			out.Table([]string{"Run", "Namespace", "Label", "Output", "Status", "Records", "Started"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Only list runs of this namespace")
	cmd.Flags().StringVar(&status, "status", "", "Only list runs with this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs (0 = all)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, yaml)")
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <namespace> <run-id>",
		Short: "Print the metadata of one run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFrom(cmd)
			backend, err := openStaging(cmd)
			if err != nil {
				return fail(out, "show run", err)
			}
			defer func() { _ = backend.Close() }()

			run, err := backend.Runs().Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return fail(out, "show run", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		},
	}
}

func newRunsGCCommand() *cobra.Command {
	var (
		dryRun     bool
		namespace  string
		maxAgeDays int
		maxRuns    int
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete runs outside the retention policy",
		Long: `Applies the staging retention policy (staging.retention.max_age_days and
staging.retention.max_runs, or the flags below) per namespace. Running runs are
never deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := outputFrom(cmd)
			backend, err := openStaging(cmd)
			if err != nil {
				return fail(out, "gc", err)
			}
			defer func() { _ = backend.Close() }()

			opts := storage.GCOptions{DryRun: dryRun, Namespace: namespace}
			if cmd.Flags().Changed("max-age-days") || cmd.Flags().Changed("max-runs") {
				opts.Retention = &storage.RetentionConfig{MaxAgeDays: maxAgeDays, MaxRuns: maxRuns}
			}

			res, err := backend.GarbageCollect(cmd.Context(), opts)
			if err != nil {
				return fail(out, "gc", err)
			}
			for _, gcErr := range res.Errors {
				out.Warning(gcErr.Error())
			}

			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			out.Info(fmt.Sprintf("%s %d run(s)", verb, res.RunsDeleted))
			for _, id := range res.DeletedRunIDs {
				out.Diag(output.LevelVerbose, "run selected", map[string]any{"run_id": id})
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deleted")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Only collect this namespace")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Override the configured maximum run age")
	cmd.Flags().IntVar(&maxRuns, "max-runs", 0, "Override the configured runs kept per namespace")
	return cmd
}
