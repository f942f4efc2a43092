package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParsePackageSpec_WithDepends(t *testing.T) {
	spec, err := ParsePackageSpec("foo 1.0; depends bar, baz")
	require.NoError(t, err)

	assert.Equal(t, PackageSpec{
		Name:    "foo",
		Version: "1.0",
		Depends: []string{"bar", "baz"},
		Extras:  map[string][]string{},
	}, spec)
}

func TestParsePackageSpec_NameAndVersionOnly(t *testing.T) {
	spec, err := ParsePackageSpec("  B   2.0.0  ")
	require.NoError(t, err)

	assert.Equal(t, "B", spec.Name)
	assert.Equal(t, "2.0.0", spec.Version)
	assert.Empty(t, spec.Depends)
	assert.NotNil(t, spec.Depends)
	assert.Empty(t, spec.Extras)
}

func TestParsePackageSpec_StripsWhitespace(t *testing.T) {
	spec, err := ParsePackageSpec("A 1.0.0 ;   depends   B == 1.0.0 ,C")
	require.NoError(t, err)

	assert.Equal(t, []string{"B == 1.0.0", "C"}, spec.Depends)
}

func TestParsePackageSpec_UnknownVerb(t *testing.T) {
	_, err := ParsePackageSpec("foo 1.0; conflicts bar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown verb "conflicts"`)
}

func TestParsePackageSpec_MalformedHead(t *testing.T) {
	tests := []string{
		"foo",
		"foo 1.0 extra",
		"; depends bar",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParsePackageSpec(input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `expected "name version"`)
		})
	}
}

func TestParsePackageSpec_DependsWithoutArgs(t *testing.T) {
	_, err := ParsePackageSpec("foo 1.0; depends")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs at least one requirement")
}

func TestPackageSpec_String(t *testing.T) {
	spec := PackageSpec{Name: "foo", Version: "1.0", Depends: []string{"bar", "baz"}}
	assert.Equal(t, "foo 1.0; depends bar, baz", spec.String())

	assert.Equal(t, "foo 1.0", PackageSpec{Name: "foo", Version: "1.0"}.String())
}

func TestPackageSpec_UnmarshalYAML(t *testing.T) {
	content := `
- A 1.0.0; depends B
- name: B
  version: 2.0.0
  extras:
    tests: [pytest]
`
	var specs []PackageSpec
	require.NoError(t, yaml.Unmarshal([]byte(content), &specs))
	require.Len(t, specs, 2)

	assert.Equal(t, "A", specs[0].Name)
	assert.Equal(t, []string{"B"}, specs[0].Depends)

	assert.Equal(t, "B", specs[1].Name)
	assert.Equal(t, "2.0.0", specs[1].Version)
	assert.Equal(t, []string{}, specs[1].Depends)
	assert.Equal(t, map[string][]string{"tests": {"pytest"}}, specs[1].Extras)
}

func TestPackageSpec_UnmarshalYAMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown verb", `["A 1.0; provides B"]`, "unknown verb"},
		{"missing version", "- name: A\n", "needs both name and version"},
		{"sequence", "- [A, B]\n", "must be a string or a mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var specs []PackageSpec
			err := yaml.Unmarshal([]byte(tt.content), &specs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
