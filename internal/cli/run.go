package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/harness"
	"github.com/roach88/pipyaml/internal/script"
	"github.com/roach88/pipyaml/internal/store"
)

// InstallerEnv overrides the default of --installer.
const InstallerEnv = "PIPYAML_INSTALLER"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Installer    string
	SitePackages string
	Filter       string
	Database     string
	Workdir      string
	Keep         bool
}

// CaseReport is the JSON view of one case result.
type CaseReport struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Status   string  `json:"status"`
	Steps    int     `json:"steps"`
	Duration float64 `json:"duration_seconds"`
	Message  string  `json:"message,omitempty"`
}

// RunReport is the JSON view of a suite run.
type RunReport struct {
	RunID      string        `json:"run_id,omitempty"`
	Cases      []CaseReport  `json:"cases"`
	LoadErrors []string      `json:"load_errors,omitempty"`
	Summary    store.Summary `json:"summary"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <fixtures-dir>",
		Short: "Replay fixtures against the installer",
		Long: `Replay every fixture case below a directory.

Fixtures are read from <fixtures-dir>/<group>/<scenario>.yml. Each case
runs in its own scratch directory: its available packages are built into
a local wheel index and every request is passed to the installer with
the network disabled.

Exit codes:
  0 - All cases passed (expected failures included)
  1 - One or more cases failed or errored
  2 - Command error (invalid paths, database errors, etc.)

Examples:
  pipyaml run ./fixtures
  pipyaml run ./fixtures --filter "conflicting/*"
  pipyaml run ./fixtures --installer "python -m pip" --db ./results.db
  PIPYAML_INSTALLER=./venv/bin/pip pipyaml run ./fixtures --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtures(opts, args[0], cmd)
		},
	}

	defaultInstaller := os.Getenv(InstallerEnv)
	if defaultInstaller == "" {
		defaultInstaller = strings.Join(script.DefaultInstaller, " ")
	}

	cmd.Flags().StringVar(&opts.Installer, "installer", defaultInstaller, "installer command, split on whitespace (env "+InstallerEnv+")")
	cmd.Flags().StringVar(&opts.SitePackages, "site-packages", "", "existing site-packages to install into (default: a fresh directory per case)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only cases whose name matches this glob")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record results in this SQLite database")
	cmd.Flags().StringVar(&opts.Workdir, "workdir", "", "parent directory for scratch directories (default: a temporary directory)")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "keep scratch directories after the run")

	return cmd
}

func runFixtures(opts *RunOptions, dir string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	set, err := LoadFixtures(dir, opts.Filter)
	if err != nil {
		return loadError(formatter, err)
	}
	formatter.VerboseLog("Found %d fixture file(s) in %s", len(set.Files), dir)

	installer := strings.Fields(opts.Installer)
	if len(installer) == 0 {
		return commandError(formatter, ErrCodeGeneric, "--installer must not be empty", nil)
	}

	cfg := harness.Config{
		Script: script.Config{
			Installer:    installer,
			SitePackages: opts.SitePackages,
		},
		Logger:  logger,
		Workdir: opts.Workdir,
		Keep:    opts.Keep,
	}

	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return commandError(formatter, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		cfg.Recorder = st
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	seq := fixture.Filter(fixture.Generate(set.Root), opts.Filter)
	suite, err := harness.New(cfg).Run(ctx, set.Root, seq)
	if err != nil {
		report := newRunReport(suite)
		if formatter.JSON() {
			_ = formatter.Failure(ErrCodeGeneric, err.Error(), report)
		} else {
			writeRunText(formatter, report)
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	report := newRunReport(suite)
	if formatter.JSON() {
		if suite.Failed() {
			_ = formatter.Failure(ErrCodeCasesFailed, failureMessage(report.Summary), report)
			return NewExitError(ExitFailure, failureMessage(report.Summary))
		}
		return formatter.Success(report)
	}

	writeRunText(formatter, report)
	if suite.Failed() {
		return NewExitError(ExitFailure, failureMessage(report.Summary))
	}
	fmt.Fprintln(formatter.Writer, "✓ All cases passed")
	return nil
}

func newRunReport(suite *harness.SuiteResult) RunReport {
	report := RunReport{Cases: []CaseReport{}}
	if suite == nil {
		return report
	}
	report.RunID = suite.RunID
	report.Summary = suite.Summary()
	for _, r := range suite.Cases {
		report.Cases = append(report.Cases, CaseReport{
			Name:     r.Name(),
			Path:     r.Case.Path,
			Status:   string(r.Status),
			Steps:    len(r.Steps),
			Duration: r.Duration.Round(time.Millisecond).Seconds(),
			Message:  r.Message(),
		})
	}
	for _, err := range suite.LoadErrors {
		report.LoadErrors = append(report.LoadErrors, err.Error())
	}
	return report
}

func writeRunText(f *OutputFormatter, report RunReport) {
	w := f.Writer
	for _, c := range report.Cases {
		fmt.Fprintln(w, statusLine(c.Status, c.Name))
		switch harness.Status(c.Status) {
		case harness.StatusFail, harness.StatusError:
			writeIndented(w, c.Message)
		case harness.StatusXFail:
			if f.Verbose {
				writeIndented(w, c.Message)
			}
		}
	}
	for _, msg := range report.LoadErrors {
		fmt.Fprintf(w, "✗ %s\n", msg)
	}

	sum := report.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d xfailed, %d xpassed, %d errored, %d total\n",
		sum.Passed, sum.Failed, sum.XFailed, sum.XPassed, sum.Errored, sum.Total)
	if report.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
	}
}

// statusLine renders one case for text output.
func statusLine(status, name string) string {
	switch harness.Status(status) {
	case harness.StatusPass:
		return "✓ " + name
	case harness.StatusXFail, harness.StatusXPass:
		return fmt.Sprintf("- %s (%s)", name, status)
	default:
		return fmt.Sprintf("✗ %s (%s)", name, status)
	}
}

func writeIndented(w io.Writer, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

func failureMessage(sum store.Summary) string {
	return fmt.Sprintf("%d case(s) failed, %d errored", sum.Failed, sum.Errored)
}
