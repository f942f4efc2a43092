package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/pipyaml/internal/fixture"
)

// LoadError represents a fixtures directory that cannot be used.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FixtureSet is the fixture files found below a root directory.
type FixtureSet struct {
	Root  string
	Files []string
}

// LoadFixtures checks that dir is a directory holding fixture files and
// validates filter. Cases are decoded later, while they are replayed.
func LoadFixtures(dir, filter string) (*FixtureSet, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixtures directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing fixtures directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	if filter != "" {
		if err := fixture.ValidatePattern(filter); err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidFilter, Message: err.Error()}
		}
	}

	files, err := fixture.Discover(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFixtures, Message: fmt.Sprintf("no fixture files (%s) found in %s", fixture.Pattern, dir)}
	}
	return &FixtureSet{Root: dir, Files: files}, nil
}

// loadError reports a LoadFixtures failure and returns the exit error.
func loadError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = f.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Error())
	}
	return commandError(f, ErrCodeGeneric, "failed to load fixtures", err)
}
