package installer

import (
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/script"
)

// Extractor turns an installer run into a structured outcome.
// ok is false when the extractor does not recognize the run.
type Extractor interface {
	Extract(result *script.Result) (outcome fixture.Outcome, ok bool)
}

// DefaultExtractors are tried in order by Install.
var DefaultExtractors = []Extractor{DistInfoExtractor{}, ConflictExtractor{}}

// DistInfoExtractor reports the distributions a successful run created.
type DistInfoExtractor struct{}

// Extract implements Extractor.
func (DistInfoExtractor) Extract(result *script.Result) (fixture.Outcome, bool) {
	if result.ReturnCode != 0 {
		return fixture.Outcome{}, false
	}
	return fixture.Installed(InstalledDists(result.FilesCreated)...), true
}

// InstalledDists derives sorted "name version" pairs from the .dist-info
// directories among paths.
func InstalledDists(paths []string) []string {
	dists := lo.FilterMap(paths, func(p string, _ int) (string, bool) {
		base := path.Base(p)
		if !strings.HasSuffix(base, distInfoSuffix) {
			return "", false
		}
		stem := strings.TrimSuffix(base, distInfoSuffix)
		i := strings.LastIndex(stem, "-")
		if i < 0 {
			return "", false
		}
		return stem[:i] + " " + stem[i+1:], true
	})
	slices.Sort(dists)
	return dists
}

const distInfoSuffix = ".dist-info"

// conflictPattern matches "<package> <version> requires <selector>" clauses,
// each ending in a comma or the message's final period.
var conflictPattern = regexp.MustCompile(
	`(?P<package>[\p{L}\p{N}_\-]+?) (?P<version>\S+?) requires (?P<selector>.+?)(?:,|\.$)`,
)

// ConflictExtractor parses the resolver's conflict message from stderr.
type ConflictExtractor struct{}

// Extract implements Extractor.
func (ConflictExtractor) Extract(result *script.Result) (fixture.Outcome, bool) {
	if result.ReturnCode == 0 || !strings.Contains(strings.ToLower(result.Stderr), "conflicting") {
		return fixture.Outcome{}, false
	}
	return fixture.Conflicting(ParseConflicts(lastLine(result.Stderr))...), true
}

// ParseConflicts extracts every requirement clause from a conflict message
// such as "A 1.0.0 requires B == 2.0.0, C 1.0.0 requires B == 1.0.0."
func ParseConflicts(message string) []fixture.Conflict {
	pkg := conflictPattern.SubexpIndex("package")
	version := conflictPattern.SubexpIndex("version")
	selector := conflictPattern.SubexpIndex("selector")

	matches := conflictPattern.FindAllStringSubmatch(message, -1)
	return lo.Map(matches, func(m []string, _ int) fixture.Conflict {
		return fixture.Conflict{
			RequiredBy: m[pkg] + " " + m[version],
			Selector:   strings.TrimSpace(m[selector]),
		}
	})
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
