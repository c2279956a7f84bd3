package resample

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// ErrInvalidPath is returned for polylines or sampling settings that cannot
// be discretized.
var ErrInvalidPath = errors.New("resample: invalid path")

// DefaultProfilePoints is the sample count used when no sampling is given.
const DefaultProfilePoints = 100

// maxPathSamples bounds step-mode discretization.
const maxPathSamples = 10_000_000

// Point is a planar vertex.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sampling selects how a polyline is discretized: a positive Step produces
// samples every Step units of arc length; otherwise Count samples are spread
// evenly from start to end. The zero value means DefaultProfilePoints.
type Sampling struct {
	Step  float64
	Count int
}

// ByStep samples every step units of arc length.
func ByStep(step float64) Sampling { return Sampling{Step: step} }

// ByCount samples n evenly spaced positions including both ends.
func ByCount(n int) Sampling { return Sampling{Count: n} }

func (s Sampling) String() string {
	if s.Step != 0 {
		return fmt.Sprintf("step=%g", s.Step)
	}
	return fmt.Sprintf("count=%d", s.count())
}

// ParseSampling reads the "step=S" or "count=N" form written by String.
func ParseSampling(v string) (Sampling, error) {
	mode, arg, ok := strings.Cut(strings.TrimSpace(v), "=")
	if !ok {
		return Sampling{}, fmt.Errorf("%w: sampling %q is not mode=value", ErrInvalidPath, v)
	}
	var s Sampling
	switch mode {
	case "step":
		step, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return Sampling{}, fmt.Errorf("%w: sampling %q: %v", ErrInvalidPath, v, err)
		}
		s = ByStep(step)
	case "count":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return Sampling{}, fmt.Errorf("%w: sampling %q: %v", ErrInvalidPath, v, err)
		}
		s = ByCount(n)
	default:
		return Sampling{}, fmt.Errorf("%w: unknown sampling mode %q", ErrInvalidPath, mode)
	}
	if err := s.Validate(); err != nil {
		return Sampling{}, err
	}
	return s, nil
}

func (s Sampling) count() int {
	if s.Count == 0 {
		return DefaultProfilePoints
	}
	return s.Count
}

// Validate rejects mixed, negative or degenerate settings.
func (s Sampling) Validate() error {
	switch {
	case s.Step != 0 && s.Count != 0:
		return fmt.Errorf("%w: step and count are mutually exclusive", ErrInvalidPath)
	case s.Step != 0 && !(s.Step > 0 && !math.IsInf(s.Step, 0)):
		return fmt.Errorf("%w: step must be positive and finite, got %g", ErrInvalidPath, s.Step)
	case s.Step == 0 && s.count() < 2:
		return fmt.Errorf("%w: count must be at least 2, got %d", ErrInvalidPath, s.Count)
	}
	return nil
}

// Path is a discretized polyline: Distance[i] is the arc length at which
// (X[i], Y[i]) lies.
type Path struct {
	Distance []float64
	X        []float64
	Y        []float64
}

// Len returns the number of sample positions.
func (p Path) Len() int { return len(p.Distance) }

// CumulativeDistance returns the running arc length through the points
// (xs[i], ys[i]), starting at 0.
func CumulativeDistance(xs, ys []float64) []float64 {
	n := min(len(xs), len(ys))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + math.Hypot(xs[i]-xs[i-1], ys[i]-ys[i-1])
	}
	return out
}

// Discretize converts the polyline through vertices into equidistant sample
// positions along its cumulative arc length. Sample coordinates are linearly
// interpolated along the segment that contains them.
func Discretize(vertices []Point, s Sampling) (Path, error) {
	if len(vertices) < 2 {
		return Path{}, fmt.Errorf("%w: need at least 2 vertices, got %d", ErrInvalidPath, len(vertices))
	}
	if err := s.Validate(); err != nil {
		return Path{}, err
	}

	vx := make([]float64, len(vertices))
	vy := make([]float64, len(vertices))
	for i, v := range vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return Path{}, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidPath, i)
		}
		vx[i], vy[i] = v.X, v.Y
	}
	cum := CumulativeDistance(vx, vy)
	total := cum[len(cum)-1]
	if total <= 0 {
		return Path{}, fmt.Errorf("%w: path has zero length", ErrInvalidPath)
	}

	dists, err := sampleDistances(total, s)
	if err != nil {
		return Path{}, err
	}

	// Repeated vertices give zero-length segments; the fit needs strictly
	// increasing knots, so keep only the first vertex of each repeat.
	knots, kx, ky := []float64{cum[0]}, []float64{vx[0]}, []float64{vy[0]}
	for i := 1; i < len(cum); i++ {
		if cum[i] > knots[len(knots)-1] {
			knots = append(knots, cum[i])
			kx = append(kx, vx[i])
			ky = append(ky, vy[i])
		}
	}

	var fitX, fitY interp.PiecewiseLinear
	if err := fitX.Fit(knots, kx); err != nil {
		return Path{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if err := fitY.Fit(knots, ky); err != nil {
		return Path{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	p := Path{
		Distance: dists,
		X:        make([]float64, len(dists)),
		Y:        make([]float64, len(dists)),
	}
	for i, d := range dists {
		p.X[i] = fitX.Predict(d)
		p.Y[i] = fitY.Predict(d)
	}
	return p, nil
}

// sampleDistances returns the arc-length positions for a path of length total.
func sampleDistances(total float64, s Sampling) ([]float64, error) {
	if s.Step == 0 {
		dists := floats.Span(make([]float64, s.count()), 0, total)
		dists[len(dists)-1] = total
		return dists, nil
	}

	if total/s.Step > maxPathSamples {
		return nil, fmt.Errorf("%w: step %g yields more than %d samples", ErrInvalidPath, s.Step, maxPathSamples)
	}
	var dists []float64
	for i := 0; ; i++ {
		d := float64(i) * s.Step
		if d >= total {
			break
		}
		dists = append(dists, d)
	}
	// The final, possibly shorter, interval always ends on the last vertex.
	if dists[len(dists)-1] < total {
		dists = append(dists, total)
	}
	return dists, nil
}
