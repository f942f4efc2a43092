package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/installer"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                      `json:"valid"`
	Files  int                       `json:"files"`
	Errors []fixture.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <fixtures-dir>",
		Short: "Validate fixtures without running them",
		Long: `Validate fixture files without invoking the installer.

Each file is checked against the fixture schema, then decoded into cases:
package specs must parse, every request must hold exactly one supported
action, and every case needs as many transaction entries as requests.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	set, err := LoadFixtures(dir, "")
	if err != nil {
		return loadError(formatter, err)
	}
	formatter.VerboseLog("Found %d fixture file(s) in %s", len(set.Files), dir)

	errs := ValidateFixtures(set, formatter)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, len(set.Files), errs)
	}
	return outputValidateSuccess(formatter, len(set.Files))
}

// ValidateFixtures validates every file of the set against the supported
// actions.
func ValidateFixtures(set *FixtureSet, formatter *OutputFormatter) []fixture.ValidationError {
	actions := installer.Supported()

	var all []fixture.ValidationError
	for _, file := range set.Files {
		formatter.VerboseLog("Validating fixture: %s", file)
		all = append(all, fixture.Validate(file, fixture.BaseName(set.Root, file), actions)...)
	}
	return all
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ All fixtures valid (%d file(s))\n", files)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, files int, errs []fixture.ValidationError) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(errs))

	if formatter.JSON() {
		if err := formatter.Failure(ErrCodeInvalid, errs[0].Message, ValidationResult{
			Valid:  false,
			Files:  files,
			Errors: errs,
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, message)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	file := ""
	for _, err := range errs {
		if err.File != file {
			file = err.File
			fmt.Fprintln(formatter.Writer, file)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, message)
}
