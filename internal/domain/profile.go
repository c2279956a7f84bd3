package domain

import (
	"fmt"

	"github.com/banshee-data/geko/internal/resample"
)

// Profile is a polyline estimation domain.
type Profile struct {
	Binding

	vertices []resample.Point
	sampling resample.Sampling
}

// NewProfile returns an unbound profile through vertices. At least two
// vertices are required; vertices are copied.
func NewProfile(vertices []resample.Point, s resample.Sampling) (*Profile, error) {
	if len(vertices) < 2 {
		return nil, fmt.Errorf("%w: profile needs at least 2 vertices, got %d", ErrInvalidDomain, len(vertices))
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return &Profile{
		vertices: append([]resample.Point(nil), vertices...),
		sampling: s,
	}, nil
}

// Vertices returns a copy of the polyline vertices.
func (p *Profile) Vertices() []resample.Point {
	return append([]resample.Point(nil), p.vertices...)
}

// Sampling returns the discretization mode.
func (p *Profile) Sampling() resample.Sampling { return p.sampling }

// Discretize returns the sample positions along the polyline.
func (p *Profile) Discretize() (resample.Path, error) {
	return resample.Discretize(p.vertices, p.sampling)
}

// Sample interpolates r along the discretized path. r is expected to have
// been estimated with the bound model, so an unbound profile fails with
// ErrPrecondition. Use resample.Extract to cut a profile from a grid that
// has no model attached.
func (p *Profile) Sample(r *resample.Raster) (resample.ProfileSample, error) {
	if _, err := p.Model(); err != nil {
		return nil, err
	}
	path, err := p.Discretize()
	if err != nil {
		return nil, err
	}
	return resample.Sample(r, path)
}

// RequestEstimate asks est for point estimates at every discretized position.
func (p *Profile) RequestEstimate(est Estimator) (resample.ProfileSample, error) {
	model, err := p.Model()
	if err != nil {
		return nil, err
	}
	path, err := p.Discretize()
	if err != nil {
		return nil, err
	}
	z, sigma, err := est.EstimatePoints(PointRequest{
		Model:  model,
		Params: p.Params(),
		X:      append([]float64(nil), path.X...),
		Y:      append([]float64(nil), path.Y...),
	})
	if err != nil {
		return nil, fmt.Errorf("estimate profile: %w", err)
	}
	if len(z) != path.Len() || len(sigma) != path.Len() {
		return nil, fmt.Errorf("estimate profile: got %d/%d values for %d positions", len(z), len(sigma), path.Len())
	}

	out := make(resample.ProfileSample, path.Len())
	for i := range out {
		out[i] = resample.ProfilePoint{
			Distance: path.Distance[i],
			X:        path.X[i],
			Y:        path.Y[i],
			Z:        z[i],
			Sigma:    sigma[i],
		}
	}
	return out, nil
}

// ArtifactName returns the export basename for the bound model.
func (p *Profile) ArtifactName(base string) (string, error) {
	return artifactName(&p.Binding, base)
}
