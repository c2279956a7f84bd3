package resample

import "fmt"

// ProfilePoint is one sample along a profile.
type ProfilePoint struct {
	Distance float64
	X        float64
	Y        float64
	Z        float64
	Sigma    float64
}

// ProfileSample is an ordered profile with non-decreasing Distance.
type ProfileSample []ProfilePoint

// Distances returns the distance column.
func (ps ProfileSample) Distances() []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Distance
	}
	return out
}

// Values returns the Z column.
func (ps ProfileSample) Values() []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Z
	}
	return out
}

// Sample interpolates both layers of r at every position of p. Positions
// outside the raster produce NaN Z and Sigma in place, so the result always
// has p.Len() entries in path order.
func Sample(r *Raster, p Path) (ProfileSample, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if len(p.X) != p.Len() || len(p.Y) != p.Len() {
		return nil, fmt.Errorf("%w: path columns differ in length", ErrInvalidPath)
	}

	out := make(ProfileSample, p.Len())
	for i := range out {
		x, y := p.X[i], p.Y[i]
		out[i] = ProfilePoint{
			Distance: p.Distance[i],
			X:        x,
			Y:        y,
			Z:        r.Interpolate(x, y),
			Sigma:    r.InterpolateSigma(x, y),
		}
	}
	return out, nil
}

// Extract discretizes the polyline through vertices and samples r along it.
// It derives a profile from an already estimated grid.
func Extract(r *Raster, vertices []Point, s Sampling) (ProfileSample, error) {
	p, err := Discretize(vertices, s)
	if err != nil {
		return nil, err
	}
	return Sample(r, p)
}
