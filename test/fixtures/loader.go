// Package fixtures provides access to shared test plan files.
package fixtures

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aggrex/aggrex/internal/plan"
	"github.com/stretchr/testify/require"
)

// fixturesDir returns the absolute path to the fixtures directory.
func fixturesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}

// PlanPath returns the absolute path of a fixture plan file.
func PlanPath(filename string) string {
	return filepath.Join(fixturesDir(), "plans", filename)
}

// LoadPlan loads and parses a fixture plan file.
func LoadPlan(t *testing.T, filename string) *plan.Plan {
	t.Helper()
	p, err := plan.Load(PlanPath(filename))
	require.NoError(t, err, "failed to load fixture plan: %s", filename)
	return p
}
