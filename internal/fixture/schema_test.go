package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchema_ValidFixture(t *testing.T) {
	msgs, err := CheckSchema("simple.yml", []byte(twoCaseFixture))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCheckSchema_AcceptsCaseName(t *testing.T) {
	msgs, err := CheckSchema("named.yml", []byte("cases:\n  - name: custom\n    skip: true\n"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCheckSchema_MappingPackageAndConflicts(t *testing.T) {
	content := `
cases:
  - available:
      - name: A
        version: 1.0.0
        depends: [B == 2.0.0]
    request:
      - install: A
    transaction:
      - conflicting:
          - required_by: A 1.0.0
            selector: B == 2.0.0
`
	msgs, err := CheckSchema("mapping.yml", []byte(content))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCheckSchema_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing cases", "base:\n  available: []\n"},
		{"unknown top-level key", "cases: []\nextra: 1\n"},
		{"skip not a bool", "cases:\n  - skip: sometimes\n"},
		{"package without version", "cases:\n  - available:\n      - name: A\n"},
		{"unsupported outcome", "cases:\n  - transaction:\n      - uninstall: [A 1.0]\n"},
		{"conflict without selector", "cases:\n  - transaction:\n      - conflicting:\n          - required_by: A 1.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := CheckSchema("bad.yml", []byte(tt.content))
			require.NoError(t, err)
			assert.NotEmpty(t, msgs)
		})
	}
}

func TestValidate_SemanticChecks(t *testing.T) {
	root := t.TempDir()
	path := writeFixture(t, root, "bad/semantic.yml", `
cases:
  - request:
      - install: A
      - install: B
    transaction:
      - {}
  - request:
      - install: A
        remove: A
    transaction:
      - {}
  - request:
      - uninstall: A
    transaction:
      - {}
`)

	errs := Validate(path, "bad/semantic", map[string]bool{ActionInstall: true})
	require.Len(t, errs, 3)

	assert.Equal(t, CodeCount, errs[0].Code)
	assert.Contains(t, errs[0].Message, "bad/semantic-0")
	assert.Equal(t, CodeAction, errs[1].Code)
	assert.Contains(t, errs[1].Message, "expected only one action")
	assert.Equal(t, CodeAction, errs[2].Code)
	assert.Contains(t, errs[2].Message, `unsupported action "uninstall"`)
}

func TestValidate_CleanFixture(t *testing.T) {
	root := t.TempDir()
	path := writeFixture(t, root, "basic/simple.yml", twoCaseFixture)

	assert.Empty(t, Validate(path, "basic/simple", map[string]bool{ActionInstall: true}))
}

func TestValidate_DecodeError(t *testing.T) {
	root := t.TempDir()
	path := writeFixture(t, root, "bad/verb.yml", `
cases:
  - available:
      - A 1.0; conflicts B
`)

	errs := Validate(path, "bad/verb", nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeDecode, errs[0].Code)
	assert.Contains(t, errs[0].Message, "unknown verb")
}

func TestValidate_MissingFile(t *testing.T) {
	errs := Validate("/nonexistent/x.yml", "x", nil)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRead, errs[0].Code)
}
