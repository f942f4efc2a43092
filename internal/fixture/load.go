package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Pattern matched below the root when discovering fixture files.
const Pattern = "*/*.yml"

// ErrNoCases is returned for fixture files without a cases key.
var ErrNoCases = errors.New("a fixture needs cases to be used in testing")

// document is the top level of a fixture file.
// Cases is a pointer so a missing key can be told apart from an empty list.
type document struct {
	Base  map[string]*yaml.Node    `yaml:"base"`
	Cases *[]map[string]*yaml.Node `yaml:"cases"`
}

// Discover returns the fixture files below root, sorted by path.
func Discover(root string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob fixtures: %w", err)
	}
	slices.Sort(matches)

	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return files, nil
}

// Generate yields every case of every fixture file below root.
//
// Files are discovered and read each time the sequence is ranged over.
// A malformed fixture yields an error; the caller decides whether to stop.
func Generate(root string) iter.Seq2[Case, error] {
	return func(yield func(Case, error) bool) {
		files, err := Discover(root)
		if err != nil {
			yield(Case{}, err)
			return
		}

		for _, file := range files {
			cases, err := LoadFile(file, BaseName(root, file))
			if err != nil {
				if !yield(Case{}, err) {
					return
				}
				continue
			}
			for _, c := range cases {
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

// Collect drains a case sequence, stopping at the first error.
func Collect(seq iter.Seq2[Case, error]) ([]Case, error) {
	var cases []Case
	for c, err := range seq {
		if err != nil {
			return cases, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// BaseName strips the root and extension from a fixture path,
// giving a slash separated name such as "conflicting/simple".
func BaseName(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// LoadFile reads a fixture file and expands it into cases named after
// baseName.
func LoadFile(file, baseName string) ([]Case, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	cases, err := Parse(data, baseName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	for i := range cases {
		cases[i].Path = file
	}
	return cases, nil
}

// Parse expands fixture file content into cases.
// Every case starts from a copy of base, overridden key by key.
func Parse(data []byte, baseName string) ([]Case, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Cases == nil {
		return nil, ErrNoCases
	}

	templates := *doc.Cases
	cases := make([]Case, 0, len(templates))
	for i, tmpl := range templates {
		c, err := mergeCase(doc.Base, tmpl)
		if err != nil {
			return nil, fmt.Errorf("cases[%d]: %w", i, err)
		}

		c.Name = baseName
		if len(templates) > 1 {
			c.Name += "-" + strconv.Itoa(i)
		}
		c.Index = i
		cases = append(cases, c)
	}
	return cases, nil
}

// mergeFields overlays tmpl on a copy of base.
func mergeFields(base, tmpl map[string]*yaml.Node) map[string]*yaml.Node {
	merged := make(map[string]*yaml.Node, len(base)+len(tmpl))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range tmpl {
		merged[k] = v
	}
	return merged
}

// mergeCase applies tmpl over base and decodes the result strictly.
// A declared name is accepted but the generated one always wins.
func mergeCase(base, tmpl map[string]*yaml.Node) (Case, error) {
	merged := mergeFields(base, tmpl)
	delete(merged, "name")

	// Round trip through bytes: yaml.Node.Decode has no strict mode.
	data, err := yaml.Marshal(merged)
	if err != nil {
		return Case{}, fmt.Errorf("failed to merge base: %w", err)
	}

	var c Case
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&c); err != nil {
		return Case{}, fmt.Errorf("failed to decode case: %w", err)
	}
	return c, nil
}

// Filter yields only the cases whose name matches the doublestar pattern.
// An empty pattern keeps every case; errors pass through.
func Filter(seq iter.Seq2[Case, error], pattern string) iter.Seq2[Case, error] {
	if pattern == "" {
		return seq
	}
	return func(yield func(Case, error) bool) {
		for c, err := range seq {
			if err == nil && !MatchName(pattern, c.Name) {
				continue
			}
			if !yield(c, err) {
				return
			}
		}
	}
}

// MatchName reports whether a case name matches a doublestar pattern.
// Invalid patterns match nothing; check them with ValidatePattern first.
func MatchName(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// ValidatePattern rejects malformed filter patterns.
func ValidatePattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid filter pattern %q", pattern)
	}
	return nil
}
