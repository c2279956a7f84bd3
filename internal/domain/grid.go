package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/geko/internal/resample"
)

// Grid is a regular estimation window of Bins columns by Hist rows.
type Grid struct {
	Binding

	XMin float64
	XMax float64
	YMin float64
	YMax float64
	Bins int
	Hist int
}

// NewGrid returns an unbound grid after validating the window.
func NewGrid(xmin, xmax, ymin, ymax float64, bins, hist int) (*Grid, error) {
	g := &Grid{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax, Bins: bins, Hist: hist}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks bins, hist > 0 and a non-empty finite window.
func (g *Grid) Validate() error {
	if g.Bins <= 0 || g.Hist <= 0 {
		return fmt.Errorf("%w: bins=%d hist=%d must be positive", ErrInvalidDomain, g.Bins, g.Hist)
	}
	for _, v := range []float64{g.XMin, g.XMax, g.YMin, g.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: window bounds must be finite", ErrInvalidDomain)
		}
	}
	if g.XMin >= g.XMax {
		return fmt.Errorf("%w: xmin %g >= xmax %g", ErrInvalidDomain, g.XMin, g.XMax)
	}
	if g.YMin >= g.YMax {
		return fmt.Errorf("%w: ymin %g >= ymax %g", ErrInvalidDomain, g.YMin, g.YMax)
	}
	return nil
}

// Axes returns the node coordinates along X (Bins values) and Y (Hist
// values). A single bin sits at the window minimum.
func (g *Grid) Axes() (x, y []float64) {
	return span(g.XMin, g.XMax, g.Bins), span(g.YMin, g.YMax, g.Hist)
}

func span(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// RequestEstimate asks est for a raster over the window with the bound
// model and checks the returned shape.
func (g *Grid) RequestEstimate(est Estimator) (*resample.Raster, error) {
	model, err := g.Model()
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	r, err := est.EstimateGrid(GridRequest{
		Model:  model,
		Params: g.Params(),
		XMin:   g.XMin,
		XMax:   g.XMax,
		YMin:   g.YMin,
		YMax:   g.YMax,
		Bins:   g.Bins,
		Hist:   g.Hist,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate grid: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("estimate grid: %w", err)
	}
	if r.NCols() != g.Bins || r.NRows() != g.Hist {
		return nil, fmt.Errorf("estimate grid: %w: got %dx%d raster, want %dx%d",
			resample.ErrInvalidRaster, r.NRows(), r.NCols(), g.Hist, g.Bins)
	}
	return r, nil
}

// ArtifactName returns the export basename for the bound model:
// <base>_<nork>_<nvec>_mod_<idx>.
func (g *Grid) ArtifactName(base string) (string, error) {
	return artifactName(&g.Binding, base)
}

func artifactName(b *Binding, base string) (string, error) {
	model, err := b.Model()
	if err != nil {
		return "", err
	}
	p := b.Params()
	return fmt.Sprintf("%s_%d_%d_mod_%d", base, p.Nork, p.Nvec, model.ModelIdx), nil
}
