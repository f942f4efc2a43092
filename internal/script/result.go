package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Result is the observed outcome of one installer run.
type Result struct {
	Args       []string
	ReturnCode int
	Stdout     string
	Stderr     string

	// FilesCreated and FilesDeleted are slash separated paths relative to
	// the watched site directory, sorted.
	FilesCreated []string
	FilesDeleted []string

	Duration time.Duration
}

// String renders the result for failure diagnostics.
func (r *Result) String() string {
	if r == nil {
		return "<no result>"
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Script result: %s\n", strings.Join(r.Args, " "))
	fmt.Fprintf(&buf, "-- returncode: %d\n", r.ReturnCode)
	if r.Stdout != "" {
		fmt.Fprintf(&buf, "-- stdout: --------------------\n%s", withNewline(r.Stdout))
	}
	if r.Stderr != "" {
		fmt.Fprintf(&buf, "-- stderr: --------------------\n%s", withNewline(r.Stderr))
	}
	if len(r.FilesCreated) > 0 {
		buf.WriteString("-- created: -------------------\n")
		for _, f := range r.FilesCreated {
			fmt.Fprintf(&buf, "  %s\n", f)
		}
	}
	if len(r.FilesDeleted) > 0 {
		buf.WriteString("-- deleted: -------------------\n")
		for _, f := range r.FilesDeleted {
			fmt.Fprintf(&buf, "  %s\n", f)
		}
	}
	return buf.String()
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// snapshot lists every path below dir, files and directories alike.
// A missing dir yields an empty set.
func snapshot(dir string) (map[string]struct{}, error) {
	paths := make(map[string]struct{})
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		paths[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return paths, nil
}

// difference returns the sorted paths in a that are not in b.
func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for p := range a {
		if _, ok := b[p]; !ok {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}
