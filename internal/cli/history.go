package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pipyaml/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Case     string // optional - history of one case across runs
}

// RunDetail is one run with its case results.
type RunDetail struct {
	Run   store.Run          `json:"run"`
	Cases []store.CaseRecord `json:"cases"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show results recorded by "pipyaml run --db".

Without arguments, lists the most recent runs with their summaries.
With a run ID, shows every case result of that run. With --case, shows
how one case fared across runs.

Examples:
  pipyaml history --db ./results.db
  pipyaml history --db ./results.db 0192f7c4-...
  pipyaml history --db ./results.db --case conflicting/simple --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of entries, 0 for all")
	cmd.Flags().StringVar(&opts.Case, "case", "", "show the history of one case")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 && opts.Case != "" {
		return commandError(formatter, ErrCodeGeneric, "run-id and --case cannot be combined", nil)
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return commandError(formatter, ErrCodeNotFound, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case len(args) == 1:
		return showRun(ctx, st, args[0], formatter)
	case opts.Case != "":
		return showCase(ctx, st, opts.Case, opts.Limit, formatter)
	default:
		return showRuns(ctx, st, opts.Limit, formatter)
	}
}

func showRuns(ctx context.Context, st *store.Store, limit int, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to list runs", err)
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTOTAL\tPASS\tFAIL\tXFAIL\tXPASS\tERROR\tROOT")
	for _, r := range runs {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.DateTime), s.Total, s.Passed, s.Failed, s.XFailed, s.XPassed, s.Errored, r.Root)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, st *store.Store, id string, formatter *OutputFormatter) error {
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to read run", err)
	}
	cases, err := st.ListCaseResults(ctx, id)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to read case results", err)
	}

	if formatter.JSON() {
		return formatter.Success(RunDetail{Run: run, Cases: cases})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  root:      %s\n", run.Root)
	fmt.Fprintf(w, "  installer: %s\n", run.Installer)
	fmt.Fprintf(w, "  started:   %s\n", run.StartedAt.Format(time.DateTime))
	if run.FinishedAt == nil {
		fmt.Fprintln(w, "  finished:  (incomplete)")
	} else {
		fmt.Fprintf(w, "  finished:  %s\n", run.FinishedAt.Format(time.DateTime))
	}
	fmt.Fprintln(w)

	for _, c := range cases {
		fmt.Fprintln(w, statusLine(c.Status, c.Name))
		if formatter.Verbose && c.Message != "" {
			writeIndented(w, c.Message)
		}
	}

	s := run.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d xfailed, %d xpassed, %d errored, %d total\n",
		s.Passed, s.Failed, s.XFailed, s.XPassed, s.Errored, s.Total)
	return nil
}

func showCase(ctx context.Context, st *store.Store, name string, limit int, formatter *OutputFormatter) error {
	records, err := st.CaseHistory(ctx, name, limit)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to read case history", err)
	}

	if formatter.JSON() {
		return formatter.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(formatter.Writer, "No results recorded for %s.\n", name)
		return nil
	}

	// Hashes change when the fixture does; a short prefix is enough to see it.
	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCASE HASH\tDURATION")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Status, shortHash(rec.CaseHash), rec.Duration)
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
