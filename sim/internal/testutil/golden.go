// Package testutil provides shared test infrastructure for the simulator.
// It holds the golden dataset types and assertion helpers used by the
// network-level tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one network run with hand-derived expected results.
type GoldenTestCase struct {
	Name      string        `json:"name"`
	Network   string        `json:"network"` // relative to testdata/
	Seed      int64         `json:"seed"`
	TimeLimit string        `json:"time_limit,omitempty"`
	Metrics   GoldenMetrics `json:"metrics"`
}

// GoldenMetrics represents the expected outcome of a golden test case.
type GoldenMetrics struct {
	// Exact match
	Termination string `json:"termination"`
	Dispatched  uint64 `json:"dispatched"`
	Received    int64  `json:"received"`
	Bits        int64  `json:"bits"`

	// Derived from the simulation clock
	SimTimeS  float64 `json:"sim_time_s"`
	E2EMeanS  float64 `json:"e2e_mean_s"`
	E2EMaxS   float64 `json:"e2e_max_s"`
	BusyTimeS float64 `json:"busy_time_s"` // summed over all channels
}

// testdataDir resolves the repo-root testdata directory relative to this
// source file: sim/internal/testutil/ → testdata/.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata")
}

// TestdataPath returns the absolute path of a file under testdata/.
func TestdataPath(t *testing.T, rel string) string {
	t.Helper()
	return filepath.Join(testdataDir(t), filepath.FromSlash(rel))
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	data, err := os.ReadFile(TestdataPath(t, "goldendataset.json"))
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("Golden dataset has no test cases")
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
