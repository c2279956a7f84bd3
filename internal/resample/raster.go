package resample

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidRaster is returned for rasters whose axes and layers disagree.
var ErrInvalidRaster = errors.New("resample: invalid raster")

// spacingTolerance is the relative deviation from uniform node spacing
// accepted by Validate.
const spacingTolerance = 1e-6

// snapTolerance snaps fractional indices that land within this distance of a
// node onto the node, so node queries reproduce stored values exactly.
const snapTolerance = 1e-9

// Raster is an estimated grid. Z and Sigma are indexed [row][col]; X holds
// the column coordinates and Y the row coordinates, both ascending and
// uniformly spaced. Sigma may be nil when no uncertainty was produced.
type Raster struct {
	X     []float64
	Y     []float64
	Z     [][]float64
	Sigma [][]float64
}

// NewRaster allocates NaN-filled Z and Sigma layers over the given axes.
func NewRaster(x, y []float64) *Raster {
	r := &Raster{
		X:     append([]float64(nil), x...),
		Y:     append([]float64(nil), y...),
		Z:     newLayer(len(y), len(x)),
		Sigma: newLayer(len(y), len(x)),
	}
	return r
}

func newLayer(rows, cols int) [][]float64 {
	layer := make([][]float64, rows)
	for i := range layer {
		layer[i] = make([]float64, cols)
		for j := range layer[i] {
			layer[i][j] = math.NaN()
		}
	}
	return layer
}

// NCols returns the number of columns (len(X)).
func (r *Raster) NCols() int { return len(r.X) }

// NRows returns the number of rows (len(Y)).
func (r *Raster) NRows() int { return len(r.Y) }

// Bounds returns the lattice extent.
func (r *Raster) Bounds() (xmin, xmax, ymin, ymax float64) {
	return r.X[0], r.X[len(r.X)-1], r.Y[0], r.Y[len(r.Y)-1]
}

// Validate checks the axis/layer shapes and that both axes are ascending and
// uniformly spaced.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrInvalidRaster)
	}
	if len(r.X) == 0 || len(r.Y) == 0 {
		return fmt.Errorf("%w: empty axis (%d columns, %d rows)", ErrInvalidRaster, len(r.X), len(r.Y))
	}
	if err := checkAxis("X", r.X); err != nil {
		return err
	}
	if err := checkAxis("Y", r.Y); err != nil {
		return err
	}
	if err := checkLayer("Z", r.Z, len(r.Y), len(r.X)); err != nil {
		return err
	}
	if r.Sigma != nil {
		if err := checkLayer("Sigma", r.Sigma, len(r.Y), len(r.X)); err != nil {
			return err
		}
	}
	return nil
}

func checkAxis(name string, axis []float64) error {
	for _, v := range axis {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s axis has non-finite value", ErrInvalidRaster, name)
		}
	}
	if len(axis) < 2 {
		return nil
	}
	span := axis[len(axis)-1] - axis[0]
	if span <= 0 {
		return fmt.Errorf("%w: %s axis must be ascending", ErrInvalidRaster, name)
	}
	step := span / float64(len(axis)-1)
	diffs := make([]float64, len(axis)-1)
	for i := range diffs {
		diffs[i] = axis[i+1] - axis[i]
	}
	if floats.Min(diffs) <= 0 {
		return fmt.Errorf("%w: %s axis must be strictly ascending", ErrInvalidRaster, name)
	}
	if math.Abs(floats.Max(diffs)-step) > spacingTolerance*span || math.Abs(floats.Min(diffs)-step) > spacingTolerance*span {
		return fmt.Errorf("%w: %s axis is not uniformly spaced", ErrInvalidRaster, name)
	}
	return nil
}

func checkLayer(name string, layer [][]float64, rows, cols int) error {
	if len(layer) != rows {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrInvalidRaster, name, len(layer), rows)
	}
	for i, row := range layer {
		if len(row) != cols {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrInvalidRaster, name, i, len(row), cols)
		}
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Raster) Clone() *Raster {
	out := &Raster{
		X: append([]float64(nil), r.X...),
		Y: append([]float64(nil), r.Y...),
		Z: cloneLayer(r.Z),
	}
	if r.Sigma != nil {
		out.Sigma = cloneLayer(r.Sigma)
	}
	return out
}

func cloneLayer(layer [][]float64) [][]float64 {
	out := make([][]float64, len(layer))
	for i, row := range layer {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Interpolate returns the bilinear estimate of Z at (x, y), or NaN when the
// point lies outside the lattice.
func (r *Raster) Interpolate(x, y float64) float64 {
	return bilinear(r.X, r.Y, r.Z, x, y)
}

// InterpolateSigma is Interpolate for the uncertainty layer. It returns NaN
// when the raster has no Sigma layer.
func (r *Raster) InterpolateSigma(x, y float64) float64 {
	if r.Sigma == nil {
		return math.NaN()
	}
	return bilinear(r.X, r.Y, r.Sigma, x, y)
}

// InterpolateAll evaluates Z at each (xs[i], ys[i]). Misses are NaN in place.
func (r *Raster) InterpolateAll(xs, ys []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("resample: %d x values but %d y values", len(xs), len(ys))
	}
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = r.Interpolate(xs[i], ys[i])
	}
	return out, nil
}

// InDomain reports whether (x, y) lies inside the closed lattice extent.
func (r *Raster) InDomain(x, y float64) bool {
	if len(r.X) == 0 || len(r.Y) == 0 {
		return false
	}
	xmin, xmax, ymin, ymax := r.Bounds()
	return x >= xmin && x <= xmax && y >= ymin && y <= ymax
}

func bilinear(xs, ys []float64, layer [][]float64, x, y float64) float64 {
	ncols, nrows := len(xs), len(ys)
	if ncols == 0 || nrows == 0 {
		return math.NaN()
	}
	xmin, xmax := xs[0], xs[ncols-1]
	ymin, ymax := ys[0], ys[nrows-1]
	// NaN coordinates fail every comparison and fall through to the miss.
	if !(x >= xmin && x <= xmax && y >= ymin && y <= ymax) {
		return math.NaN()
	}

	fc := fractionalIndex(x, xmin, xmax, ncols)
	fr := fractionalIndex(y, ymin, ymax, nrows)

	c0 := min(int(math.Floor(fc)), ncols-1)
	r0 := min(int(math.Floor(fr)), nrows-1)
	c1 := min(c0+1, ncols-1)
	r1 := min(r0+1, nrows-1)
	dx := fc - float64(c0)
	dy := fr - float64(r0)

	// Zero-weight corners are skipped so a NaN neighbour cannot poison an
	// exact node or edge query.
	var sum float64
	if w := (1 - dx) * (1 - dy); w != 0 {
		sum += w * layer[r0][c0]
	}
	if w := dx * (1 - dy); w != 0 {
		sum += w * layer[r0][c1]
	}
	if w := (1 - dx) * dy; w != 0 {
		sum += w * layer[r1][c0]
	}
	if w := dx * dy; w != 0 {
		sum += w * layer[r1][c1]
	}
	return sum
}

// fractionalIndex maps v in [lo, hi] onto [0, n-1] assuming uniform spacing.
func fractionalIndex(v, lo, hi float64, n int) float64 {
	if n == 1 || hi == lo {
		return 0
	}
	f := (v - lo) / (hi - lo) * float64(n-1)
	if r := math.Round(f); math.Abs(f-r) < snapTolerance {
		f = r
	}
	return f
}
