package testutil

import (
	"bytes"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/wheel"
)

// index writes one wheel per compact spec and returns its find-links URL.
func index(t *testing.T, specs ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, s := range specs {
		spec, err := fixture.ParsePackageSpec(s)
		require.NoError(t, err)
		_, err = wheel.WriteBasic(dir, spec)
		require.NoError(t, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}).String()
}

func runFake(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := FakeInstallerMain(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestFakeInstaller_InstallsHighestVersions(t *testing.T) {
	links := index(t, "A 1.0.0; depends B", "B 1.0.0", "B 2.0.0")
	target := t.TempDir()

	code, stdout, stderr := runFake(t, "install", "--no-index", "--find-links", links, "A", "--verbose", "--target", target)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Successfully installed A-1.0.0 B-2.0.0")
	assert.DirExists(t, filepath.Join(target, "A-1.0.0.dist-info"))
	assert.DirExists(t, filepath.Join(target, "B-2.0.0.dist-info"))
	assert.FileExists(t, filepath.Join(target, "B", "__init__.py"))
}

func TestFakeInstaller_HonoursPins(t *testing.T) {
	links := index(t, "A 1.0.0; depends B == 1.0.0", "B 1.0.0", "B 2.0.0")
	target := t.TempDir()

	code, _, stderr := runFake(t, "install", "--no-index", "--find-links", links, "A", "--target", target)
	require.Equal(t, 0, code, stderr)

	assert.DirExists(t, filepath.Join(target, "B-1.0.0.dist-info"))
	assert.NoDirExists(t, filepath.Join(target, "B-2.0.0.dist-info"))
}

func TestFakeInstaller_ReportsConflicts(t *testing.T) {
	links := index(t,
		"top 1.0.0; depends A, C",
		"A 1.0.0; depends B == 2.0.0",
		"C 1.0.0; depends B == 1.0.0",
		"B 1.0.0",
		"B 2.0.0",
	)

	code, _, stderr := runFake(t, "install", "--no-index", "--find-links", links, "top", "--target", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "conflicting dependencies")
	assert.Contains(t, stderr, "\nA 1.0.0 requires B == 2.0.0, C 1.0.0 requires B == 1.0.0.\n")
}

func TestFakeInstaller_NoMatchingDistribution(t *testing.T) {
	links := index(t, "A 1.0.0")

	code, _, stderr := runFake(t, "install", "--no-index", "--find-links", links, "Z", "--target", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no matching distribution found for Z")
	assert.NotContains(t, stderr, "conflicting")
}

func TestFakeInstaller_UsageErrors(t *testing.T) {
	links := index(t, "A 1.0.0")

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"uninstall", "A"}},
		{"index enabled", []string{"install", "--find-links", links, "A", "--target", "/tmp/x"}},
		{"two requirements", []string{"install", "--no-index", "--find-links", links, "A", "B", "--target", "/tmp/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(FakeSiteEnv, "")
			code, _, _ := runFake(t, tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestFakeInstaller(t *testing.T) {
	argv, env := FakeInstaller()
	require.Len(t, argv, 1)
	assert.True(t, filepath.IsAbs(argv[0]))
	assert.Equal(t, []string{FakeInstallerEnv + "=1"}, env)
}
