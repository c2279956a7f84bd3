package domain

import (
	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/resample"
)

// GridRequest asks for a full raster over a window.
type GridRequest struct {
	Model  checkpoint.ModelRecord
	Params checkpoint.Params
	XMin   float64
	XMax   float64
	YMin   float64
	YMax   float64
	Bins   int // columns
	Hist   int // rows
}

// PointRequest asks for estimates at arbitrary positions.
type PointRequest struct {
	Model  checkpoint.ModelRecord
	Params checkpoint.Params
	X      []float64
	Y      []float64
}

// Estimator performs the kriging math. Implementations live outside this
// module; the domain only hands over coefficients and geometry and checks
// what comes back.
type Estimator interface {
	// EstimateGrid returns a Hist x Bins raster over the request window.
	EstimateGrid(req GridRequest) (*resample.Raster, error)

	// EstimatePoints returns Z and Sigma for each requested position.
	EstimatePoints(req PointRequest) (z, sigma []float64, err error)
}
