package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hostscan/hostscan/pkg/config"
	"github.com/hostscan/hostscan/pkg/logging"
	"github.com/hostscan/hostscan/pkg/output"
	"github.com/hostscan/hostscan/pkg/output/subscribers"
	"github.com/hostscan/hostscan/pkg/sink"
	"github.com/hostscan/hostscan/pkg/storage"
)

const cliExecutable = "hostscan"

// NewCommand constructs the top-level hostscan command, wiring global flags,
// configuration, logging, the staging config and the output pipeline.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		verbosityCount int
		verbose        bool
		jsonOutput     bool
		logCloser      io.Closer
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Normalize host scan records and load them into a warehouse table",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg := mgr.Get()

			closer, err := logging.Setup(cfg.Log, logging.Level(cfg.Log.Level, verbosityCount, verbose), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logCloser = closer

			storageConfig, err := stagingConfig(cfg)
			if err != nil {
				return err
			}
			log.Debug().Str("staging_root", storageConfig.Root).Msg("staging ready")

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = storage.WithConfig(ctx, storageConfig)
			ctx = output.WithOutput(ctx, newOutput(cmd, jsonOutput, verbosityCount))

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit JSON lines instead of human readable output")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "data", Title: "Data Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewSchemaCommand())
	cmd.AddCommand(NewJoinCommand())
	cmd.AddCommand(NewRunsCommand())

	return cmd
}

func stagingConfig(cfg config.Config) (*storage.Config, error) {
	sc := &storage.Config{
		Root: cfg.Staging.Dir,
		Retention: storage.RetentionConfig{
			MaxAgeDays: cfg.Staging.Retention.MaxAgeDays,
			MaxRuns:    cfg.Staging.Retention.MaxRuns,
		},
	}
	if sc.Root == "" {
		root, err := storage.DefaultRoot()
		if err != nil {
			return nil, fmt.Errorf("get staging config: %w", err)
		}
		sc.Root = root
	}
	return sc, sc.Validate()
}

// newOutput builds the output pipeline: JSON lines or styled text on stdout,
// plus diagnostics on stderr at the -v level.
func newOutput(cmd *cobra.Command, jsonOutput bool, verbosity int) output.Output {
	stream := output.NewOutputEventStream()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if jsonOutput {
		stream.Subscribe(subscribers.NewJSONFormatter(stdout))
	} else {
		stream.Subscribe(subscribers.NewHumanFormatter(stdout, stderr, isTerminal(stdout)))
	}
	if verbosity > 0 {
		stream.Subscribe(subscribers.NewDiagnosticSubscriber(output.OutputLevel(min(verbosity, int(output.LevelTrace))), stderr))
	}
	return output.NewDefaultOutput(stream)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// outputFrom returns the command's Output. Commands run without the root
// pre-run (tests) get a plain human formatter.
func outputFrom(cmd *cobra.Command) output.Output {
	if out, ok := output.FromContext(cmd.Context()); ok {
		return out
	}
	return newOutput(cmd, false, 0)
}

// ExitCode maps a command error to a process exit status: 2 for invalid
// invocations, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sink.ErrInvalidTableRef),
		errors.Is(err, errUsage),
		storage.IsInvalidInput(err):
		return 2
	default:
		return 1
	}
}

var errUsage = errors.New("invalid usage")

// reportedError marks an error already shown through the output pipeline.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already shown to the user.
func Reported(err error) bool {
	var re reportedError
	return errors.As(err, &re)
}

// fail reports err through the output pipeline and returns it for the exit
// status.
func fail(out output.Output, op string, err error) error {
	out.Error(fmt.Errorf("%s: %w", op, err))
	return reportedError{err}
}
