package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/pipyaml/internal/testutil"
)

// createTestStore creates a store in a temp directory with predictable run
// IDs and timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewSequentialIDs("run")),
		WithClock(testutil.NewClock().Now),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(t *testing.T, s *Store) Run {
	t.Helper()
	run, err := s.CreateRun(context.Background(), "testdata/yaml", "pip")
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	return run
}

func intPtr(i int) *int {
	return &i
}
