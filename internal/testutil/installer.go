package testutil

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"

	"github.com/roach88/pipyaml/internal/wheel"
)

// FakeInstallerEnv switches a test binary into fake installer mode.
const FakeInstallerEnv = "PIPYAML_FAKE_INSTALLER"

// FakeSiteEnv names the install directory used when no --target is given.
const FakeSiteEnv = "PIPYAML_FAKE_SITE"

// MaybeRunFakeInstaller turns the current process into the fake installer
// when FakeInstallerEnv is set. Call it first thing in TestMain:
//
//	func TestMain(m *testing.M) {
//	    testutil.MaybeRunFakeInstaller()
//	    os.Exit(m.Run())
//	}
func MaybeRunFakeInstaller() {
	if os.Getenv(FakeInstallerEnv) != "1" {
		return
	}
	os.Exit(FakeInstallerMain(os.Args[1:], os.Stdout, os.Stderr))
}

// FakeInstaller returns the installer argv prefix and environment that
// re-execute the running test binary as the fake installer.
func FakeInstaller() (argv []string, env []string) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return []string{exe}, []string{FakeInstallerEnv + "=1"}
}

// FakeInstallerMain implements a small pip-compatible installer over a
// find-links directory of wheels. It understands
//
//	install --no-index --find-links URL REQUIREMENT [--verbose] [--target DIR]
//
// resolves greedily to the highest matching versions and, when two
// requirements cannot be satisfied together, prints a pip style conflict
// message. It returns the process exit code.
func FakeInstallerMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "install" {
		fmt.Fprintln(stderr, "ERROR: unknown command")
		return 2
	}

	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	fs.SetOutput(stderr)
	noIndex := fs.Bool("no-index", false, "")
	findLinks := fs.String("find-links", "", "")
	target := fs.String("target", os.Getenv(FakeSiteEnv), "")
	verbose := fs.Bool("verbose", false, "")

	// Requirements may appear between flags.
	var requirements []string
	rest := args[1:]
	for len(rest) > 0 {
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		rest = fs.Args()
		if len(rest) > 0 {
			requirements = append(requirements, rest[0])
			rest = rest[1:]
		}
	}

	if !*noIndex || *findLinks == "" {
		fmt.Fprintln(stderr, "ERROR: only --no-index --find-links installs are supported")
		return 2
	}
	if *target == "" {
		fmt.Fprintln(stderr, "ERROR: no install target")
		return 2
	}
	if len(requirements) != 1 {
		fmt.Fprintf(stderr, "ERROR: expected one requirement, got %d\n", len(requirements))
		return 2
	}

	index, err := readIndex(*findLinks)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if *verbose {
		fmt.Fprintf(stdout, "Looking in links: %s\n", *findLinks)
	}

	r := &resolver{index: index, chosen: map[string]*wheel.Info{}, origins: map[string][]origin{}}
	if err := r.require("", requirements[0]); err != nil {
		var conflict *conflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(stderr, "ERROR: Cannot install %s because these package versions have conflicting dependencies.\n", requirements[0])
			fmt.Fprintln(stderr, conflict.Error())
			return 1
		}
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	names := slices.Sorted(maps.Keys(r.chosen))
	installed := make([]string, 0, len(names))
	for _, name := range names {
		info := r.chosen[name]
		if err := installDist(*target, info); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		installed = append(installed, info.Name+"-"+info.Version)
	}
	fmt.Fprintf(stdout, "Successfully installed %s\n", strings.Join(installed, " "))
	return 0
}

// readIndex loads the metadata of every wheel in a file:// find-links URL,
// grouped by lower-cased name.
func readIndex(findLinks string) (map[string][]*wheel.Info, error) {
	u, err := url.Parse(findLinks)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("unsupported find-links %q", findLinks)
	}

	paths, err := filepath.Glob(filepath.Join(filepath.FromSlash(u.Path), "*.whl"))
	if err != nil {
		return nil, err
	}

	index := map[string][]*wheel.Info{}
	for _, p := range paths {
		info, err := wheel.ReadMetadata(p)
		if err != nil {
			return nil, err
		}
		key := normalize(info.Name)
		index[key] = append(index[key], info)
	}
	return index, nil
}

// origin records who asked for a package and how.
type origin struct {
	by   string // "<name> <version>", empty for the command line
	spec string
}

type conflictError struct {
	origins []origin
}

func (e *conflictError) Error() string {
	clauses := lo.FilterMap(e.origins, func(o origin, _ int) (string, bool) {
		return o.by + " requires " + o.spec, o.by != ""
	})
	return strings.Join(clauses, ", ") + "."
}

type resolver struct {
	index   map[string][]*wheel.Info
	chosen  map[string]*wheel.Info
	origins map[string][]origin
}

func (r *resolver) require(by, spec string) error {
	name, constraint, err := parseRequirement(spec)
	if err != nil {
		return err
	}
	key := normalize(name)
	r.origins[key] = append(r.origins[key], origin{by: by, spec: spec})

	if cur, ok := r.chosen[key]; ok {
		if matches(cur, constraint) {
			return nil
		}
		return &conflictError{origins: r.origins[key]}
	}

	candidates := r.index[key]
	if len(candidates) == 0 {
		return fmt.Errorf("no matching distribution found for %s", spec)
	}
	best, err := r.best(key)
	if err != nil {
		return err
	}
	if best == nil {
		if len(r.origins[key]) > 1 || by != "" {
			return &conflictError{origins: r.origins[key]}
		}
		return fmt.Errorf("no matching distribution found for %s", spec)
	}

	r.chosen[key] = best
	for _, dep := range best.RequiresDist {
		if strings.Contains(dep, ";") {
			continue // Extras and markers are not installed
		}
		if err := r.require(best.Name+" "+best.Version, dep); err != nil {
			return err
		}
	}
	return nil
}

// best picks the highest version of key satisfying every recorded origin.
func (r *resolver) best(key string) (*wheel.Info, error) {
	var constraints []*semver.Constraints
	for _, o := range r.origins[key] {
		_, c, err := parseRequirement(o.spec)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, c)
	}

	var best *wheel.Info
	var bestVersion *semver.Version
	for _, info := range r.index[key] {
		v, err := semver.NewVersion(info.Version)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid version %q", info.Name, info.Version)
		}
		ok := lo.EveryBy(constraints, func(c *semver.Constraints) bool {
			return c == nil || c.Check(v)
		})
		if ok && (bestVersion == nil || v.GreaterThan(bestVersion)) {
			best, bestVersion = info, v
		}
	}
	return best, nil
}

func matches(info *wheel.Info, c *semver.Constraints) bool {
	if c == nil {
		return true
	}
	v, err := semver.NewVersion(info.Version)
	return err == nil && c.Check(v)
}

var requirementPattern = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._\-]*)\s*(.*?)\s*$`)

// parseRequirement splits "name OP version[, OP version]" into the name and
// a constraint, nil when unconstrained.
func parseRequirement(spec string) (string, *semver.Constraints, error) {
	m := requirementPattern.FindStringSubmatch(spec)
	if m == nil {
		return "", nil, fmt.Errorf("invalid requirement %q", spec)
	}
	if m[2] == "" {
		return m[1], nil, nil
	}
	c, err := semver.NewConstraint(strings.ReplaceAll(m[2], "==", "="))
	if err != nil {
		return "", nil, fmt.Errorf("invalid requirement %q: %w", spec, err)
	}
	return m[1], c, nil
}

func normalize(name string) string {
	return strings.ToLower(wheel.EscapeName(name))
}

// installDist creates the files a real install of info would leave behind.
func installDist(target string, info *wheel.Info) error {
	name := wheel.EscapeName(info.Name)
	distInfo := filepath.Join(target, name+"-"+wheel.EscapeName(info.Version)+".dist-info")
	module := filepath.Join(target, strings.ReplaceAll(name, ".", "_"))

	for _, dir := range []string{distInfo, module} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	metadata := fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\n", info.Name, info.Version)
	if err := os.WriteFile(filepath.Join(distInfo, "METADATA"), []byte(metadata), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(module, "__init__.py"), []byte(fmt.Sprintf("__version__ = %q\n", info.Version)), 0644)
}
