package fixture

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Clause verbs accepted after the "name version" head of a compact spec.
const verbDepends = "depends"

// ParsePackageSpec parses the compact form
//
//	name version[; depends a, b, ...]
//
// Whitespace around every delimiter is stripped. Extras are always empty in
// the compact form.
func ParsePackageSpec(s string) (PackageSpec, error) {
	parts := strippingSplit(s, ";", -1)

	head := strings.Fields(parts[0])
	if len(head) != 2 {
		return PackageSpec{}, fmt.Errorf("package spec %q: expected \"name version\", got %q", s, parts[0])
	}

	spec := PackageSpec{
		Name:    head[0],
		Version: head[1],
		Depends: []string{},
		Extras:  map[string][]string{},
	}

	for _, part := range parts[1:] {
		clause := strippingSplit(part, " ", 2)
		verb := clause[0]
		if verb != verbDepends {
			return PackageSpec{}, fmt.Errorf("package spec %q: unknown verb %q", s, verb)
		}
		if len(clause) < 2 || clause[1] == "" {
			return PackageSpec{}, fmt.Errorf("package spec %q: %s needs at least one requirement", s, verb)
		}
		spec.Depends = strippingSplit(clause[1], ",", -1)
	}

	return spec, nil
}

// strippingSplit splits s around sep into at most n pieces (n < 0: all) and
// trims whitespace from every piece.
func strippingSplit(s, sep string, n int) []string {
	return lo.Map(strings.SplitN(strings.TrimSpace(s), sep, n), func(part string, _ int) string {
		return strings.TrimSpace(part)
	})
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}
