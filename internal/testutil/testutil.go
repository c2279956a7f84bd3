// Package testutil provides shared test fixtures for geko packages.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/fsutil"
)

func boolPtr(b bool) *bool { return &b }

// NewCheckpoint returns a small fitted-model checkpoint. The best model by
// RMSE is index 13; indices 2 and 4 tie on RMSE.
func NewCheckpoint() *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		Metadata: checkpoint.Metadata{
			Params:    checkpoint.Params{Nork: 1, Nvec: 20, ModelID: 13},
			IsNorm:    boolPtr(true),
			NPoints:   5000,
			CreatedAt: "2025-11-02 10:15:00",
			Metrics:   checkpoint.Metrics{MAE: 0.8, RMSE: 1.1, Corr: 0.97},
		},
		Payload: checkpoint.Payload{
			Title: "msh5000.csv",
			XCol:  "X",
			YCol:  "Y",
			ZCol:  "Z",
			CrossVal: []checkpoint.ModelRecord{
				{ModelIdx: 4, Coefficients: []float64{0.5, -1.25e-3}, MAE: 0.9, RMSE: 1.4, Corr: 0.95},
				{ModelIdx: 13, Coefficients: []float64{1.0, 2.0e-4, 3.5e-7}, MAE: 0.8, RMSE: 1.1, Corr: 0.97},
				{ModelIdx: 2, Coefficients: []float64{0.75}, MAE: 1.0, RMSE: 1.4, Corr: 0.93},
			},
		},
	}
}

// WriteCheckpoint stores c at path in fsys and returns the resolved path.
func WriteCheckpoint(t *testing.T, fsys fsutil.FileSystem, path string, c *checkpoint.Checkpoint) string {
	t.Helper()
	resolved, err := checkpoint.NewStore(fsys).Write(path, c)
	if err != nil {
		t.Fatalf("write checkpoint %s: %v", path, err)
	}
	return resolved
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertClose fails the test when got and want differ by more than tol.
// Two NaNs compare equal.
func AssertClose(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) && math.IsNaN(want) {
		return
	}
	if math.IsNaN(got) || math.IsNaN(want) || math.Abs(got-want) > tol {
		t.Errorf("got %v, want %v (tol %g)", got, want, tol)
	}
}
