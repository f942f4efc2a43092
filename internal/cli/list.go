package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipyaml/internal/fixture"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter string
}

// CaseEntry is one listed case.
type CaseEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Requests int    `json:"requests"`
	Skip     bool   `json:"skip,omitempty"`
}

// ListResult holds the list output.
type ListResult struct {
	Cases  []CaseEntry `json:"cases"`
	Errors []string    `json:"errors,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <fixtures-dir>",
		Short: "List fixture cases",
		Long: `List the cases generated from a fixtures directory, in run order.

Cases marked skip are expected to fail and are flagged in the output.

Examples:
  pipyaml list ./fixtures
  pipyaml list ./fixtures --filter "**/simple*"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "list only cases whose name matches this glob")

	return cmd
}

func runList(opts *ListOptions, dir string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	set, err := LoadFixtures(dir, opts.Filter)
	if err != nil {
		return loadError(formatter, err)
	}

	result := ListResult{Cases: []CaseEntry{}}
	for c, err := range fixture.Filter(fixture.Generate(set.Root), opts.Filter) {
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Cases = append(result.Cases, CaseEntry{
			Name:     fixture.DisplayName(c),
			Path:     c.Path,
			Requests: len(c.Request),
			Skip:     c.Skip,
		})
	}

	if formatter.JSON() {
		if len(result.Errors) > 0 {
			_ = formatter.Failure(ErrCodeInvalid, result.Errors[0], result)
			return NewExitError(ExitFailure, fmt.Sprintf("%d fixture(s) failed to load", len(result.Errors)))
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, c := range result.Cases {
		if c.Skip {
			fmt.Fprintf(w, "%s (skip)\n", c.Name)
		} else {
			fmt.Fprintln(w, c.Name)
		}
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "✗ %s\n", msg)
	}
	if len(result.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d fixture(s) failed to load", len(result.Errors)))
	}
	formatter.VerboseLog("%d case(s)", len(result.Cases))
	return nil
}
