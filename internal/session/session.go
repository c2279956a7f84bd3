// Package session drives an interactive profile extraction over an estimated
// grid: vertices are picked one at a time, then the polyline is sampled and
// exported. The session owns its picker; Close releases both.
package session

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/domain"
	"github.com/banshee-data/geko/internal/export"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/resample"
	"github.com/banshee-data/geko/internal/sidecar"
)

var (
	// ErrClosed is returned by any call on a closed session or picker.
	ErrClosed = errors.New("session: closed")

	// ErrOutsideGrid is returned when a picked vertex lies outside the grid.
	ErrOutsideGrid = errors.New("session: point outside grid")
)

// Picker accumulates polyline vertices.
type Picker struct {
	mu     sync.Mutex
	points []resample.Point
	closed bool
}

// Add appends a vertex.
func (p *Picker) Add(pt resample.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
		return fmt.Errorf("session: non-finite vertex (%g, %g)", pt.X, pt.Y)
	}
	p.points = append(p.points, pt)
	return nil
}

// Undo drops the most recent vertex and reports whether one was removed.
func (p *Picker) Undo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.points) == 0 {
		return false
	}
	p.points = p.points[:len(p.points)-1]
	return true
}

// Points returns a copy of the picked vertices.
func (p *Picker) Points() []resample.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]resample.Point(nil), p.points...)
}

// Close stops accepting vertices and drops the collected ones.
func (p *Picker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.points = nil
}

// Session binds a picker to one estimated grid. A session may also be bound
// to the model the grid was estimated with; its profiles are then sampled
// through a bound domain.Profile and exported under the model's name.
type Session struct {
	mu       sync.Mutex
	base     string
	raster   *resample.Raster
	picker   *Picker
	exporter *export.Exporter
	sampling resample.Sampling
	binding  domain.Binding
	closed   bool
}

// New starts a session over r. base names the grid the profiles are taken
// from and is recorded in exported headers.
func New(base string, r *resample.Raster, exp *export.Exporter, s resample.Sampling) (*Session, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		base:     base,
		raster:   r,
		picker:   &Picker{},
		exporter: exp,
		sampling: s,
	}, nil
}

// Open loads base.grd/base.hdr from fsys and starts a session over it.
// fallback gives the grid shape when the header does not.
func Open(fsys fsutil.FileSystem, base string, fallback sidecar.Shape, exp *export.Exporter, s resample.Sampling) (*Session, error) {
	r, _, err := sidecar.LoadGridShape(fsys, base, fallback)
	if err != nil {
		return nil, err
	}
	return New(base, r, exp, s)
}

// Picker returns the session's picker.
func (s *Session) Picker() *Picker { return s.picker }

// Pick adds the vertex (x, y) after checking that it lies on the grid.
func (s *Session) Pick(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.raster.InDomain(x, y) {
		return fmt.Errorf("%w: (%g, %g)", ErrOutsideGrid, x, y)
	}
	return s.picker.Add(resample.Point{X: x, Y: y})
}

// BindIndex binds the model with model_idx idx from c.
func (s *Session) BindIndex(c *checkpoint.Checkpoint, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.binding.BindIndex(c, idx)
}

// BindBest binds the lowest-RMSE model from c.
func (s *Session) BindBest(c *checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.binding.BindBest(c)
}

// Model returns the bound model, or domain.ErrPrecondition.
func (s *Session) Model() (checkpoint.ModelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding.Model()
}

// Profile samples the grid along the picked polyline.
func (s *Session) Profile() (resample.ProfileSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	ps, _, err := s.sample()
	return ps, err
}

// sample returns the profile along the picked vertices and, when a model
// is bound, the domain.Profile it was sampled through. Callers hold s.mu.
func (s *Session) sample() (resample.ProfileSample, *domain.Profile, error) {
	vertices := s.picker.Points()
	if s.binding.State() != domain.Bound {
		ps, err := resample.Extract(s.raster, vertices, s.sampling)
		return ps, nil, err
	}
	p, err := domain.NewProfile(vertices, s.sampling)
	if err != nil {
		return nil, nil, err
	}
	p.Binding = s.binding
	ps, err := p.Sample(s.raster)
	if err != nil {
		return nil, nil, err
	}
	return ps, p, nil
}

// Export samples the picked polyline and writes it through the exporter.
// A bound session names the artifact <name>_<nork>_<nvec>_mod_<idx> and
// records the model in the header.
func (s *Session) Export(name string) (export.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return export.Artifact{}, ErrClosed
	}
	if s.exporter == nil {
		return export.Artifact{}, errors.New("session: no exporter configured")
	}
	ps, p, err := s.sample()
	if err != nil {
		return export.Artifact{}, err
	}

	h := sidecar.NewHeader()
	h.Set(sidecar.KeyGrid, s.base)
	vertices := s.picker.Points()
	if p != nil {
		model, err := p.Model()
		if err != nil {
			return export.Artifact{}, err
		}
		if name, err = p.ArtifactName(name); err != nil {
			return export.Artifact{}, err
		}
		export.DescribeModel(h, p.Params(), model)
		vertices = p.Vertices()
	}
	return s.exporter.ExportProfile(name, ps, vertices, s.sampling, h)
}

// Close releases the picker and the grid. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.picker.Close()
	s.raster = nil
	monitoring.Logf("closed profile session on %s", s.base)
	return nil
}
