package cli

import (
	"io"
	"os"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dreamsxin/procmetrics/environ"
	"github.com/dreamsxin/procmetrics/types"
)

type rootFlags struct {
	file        string
	config      bool
	interpreter string
	interval    float64
	timeout     float64
	logs        bool
	descendants bool
	export      bool
	exportDir   string
	logLevel    string
	accessible  bool
}

// NewRootCommand builds the procmetrics command. prompt may be nil, in which
// case huh forms are used.
func NewRootCommand(prompt Prompter, out io.Writer) *cobra.Command {
	defaults := types.DefaultConfig()
	flags := &rootFlags{}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cmd := &cobra.Command{
		Use:   "procmetrics [-f target [-- args...]]",
		Short: "Measure memory and CPU usage of a program over its lifetime",
		Long: `procmetrics launches a program, samples its resident memory and CPU usage
at a fixed interval until it exits, times out or is interrupted, and prints
the mean and peak of every metric. Without arguments an interactive menu is shown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(flags.logLevel)
			if err != nil {
				return errors.Wrap(err, "invalid log level")
			}
			logger.SetLevel(lvl)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.toConfig()
			if err != nil {
				return err
			}

			p := prompt
			if p == nil {
				p = NewPrompter(flags.accessible)
			}
			app := NewApp(NewSettings(cfg), p, out, logger)

			switch {
			case flags.config:
				return app.ConfigureSettings()
			case flags.file != "":
				if _, err := app.RunTarget(cmd.Context(), flags.file, args...); err != nil {
					return reportedError{err}
				}
				return nil
			case len(args) > 0:
				return errors.Errorf("unexpected arguments %q, use -f to name the target", args)
			default:
				return app.Interactive(cmd.Context())
			}
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Target to run and monitor")
	f.BoolVarP(&flags.config, "config", "c", false, "Open the settings menu and exit")
	f.StringVar(&flags.interpreter, "interpreter",
		environ.GetString("PROCMETRICS_INTERPRETER", defaults.Interpreter),
		"Program used to run the target, empty to execute it directly")
	f.Float64Var(&flags.interval, "interval",
		environ.GetDuration("PROCMETRICS_INTERVAL", defaults.Interval).Seconds(),
		"Sampling interval in seconds")
	f.Float64Var(&flags.timeout, "timeout",
		environ.GetDuration("PROCMETRICS_TIMEOUT", 0).Seconds(),
		"Stop the target after this many seconds, 0 disables the timeout")
	f.BoolVar(&flags.logs, "logs",
		environ.GetBool("PROCMETRICS_LOGS", defaults.LogsEnabled),
		"Log every sample")
	f.BoolVar(&flags.descendants, "descendants",
		environ.GetBool("PROCMETRICS_DESCENDANTS", defaults.IncludeDescendants),
		"Sum metrics over the target and all its child processes")
	f.BoolVar(&flags.export, "export",
		environ.GetBool("PROCMETRICS_EXPORT", defaults.ExportSeries),
		"Write the raw series to a CSV file after the run")
	f.StringVar(&flags.exportDir, "export-dir",
		environ.GetString("PROCMETRICS_EXPORT_DIR", defaults.ExportDir),
		"Directory CSV files are written to")
	f.BoolVar(&flags.accessible, "accessible",
		environ.GetBool("PROCMETRICS_ACCESSIBLE", false),
		"Use plain line prompts instead of interactive menus")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level",
		environ.GetString("PROCMETRICS_LOG_LEVEL", "info"),
		"Log level. One of debug, info, warn, error, fatal, panic.")

	return cmd
}

func (f *rootFlags) toConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	cfg.Interpreter = f.interpreter
	cfg.LogsEnabled = f.logs
	cfg.IncludeDescendants = f.descendants
	cfg.ExportSeries = f.export
	cfg.ExportDir = f.exportDir

	interval, err := types.SecondsToDuration(f.interval)
	if err != nil {
		return cfg, errors.Wrap(err, "--interval")
	}
	cfg.Interval = interval

	if f.timeout < 0 {
		return cfg, errors.Wrap(types.ErrInvalidConfiguration, "--timeout must not be negative")
	}
	if f.timeout > 0 {
		timeout, err := types.SecondsToDuration(f.timeout)
		if err != nil {
			return cfg, errors.Wrap(err, "--timeout")
		}
		cfg.Timeout = timeout
	}

	return cfg, cfg.Validate()
}

// reportedError marks an error the run output already shows.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// runCommand executes cmd and prints its error to errOut unless it was
// already reported.
func runCommand(cmd *cobra.Command, errOut io.Writer) error {
	err := cmd.Execute()
	if err != nil && !errors.As(err, new(reportedError)) {
		renderError(errOut, err)
	}
	return err
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := runCommand(NewRootCommand(nil, os.Stdout), os.Stderr); err != nil {
		os.Exit(1)
	}
}
