package session

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/domain"
	"github.com/banshee-data/geko/internal/export"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/resample"
	"github.com/banshee-data/geko/internal/sidecar"
	"github.com/banshee-data/geko/internal/testutil"
	"github.com/banshee-data/geko/internal/timeutil"
)

// rampRaster is an 11x11 grid over [0,10]^2 with z = x + 10*y.
func rampRaster() *resample.Raster {
	axis := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	r := resample.NewRaster(axis, axis)
	for i := range r.Z {
		for j := range r.Z[i] {
			r.Z[i][j] = axis[j] + 10*axis[i]
		}
	}
	return r
}

func newExporter(fsys fsutil.FileSystem) *export.Exporter {
	return &export.Exporter{
		OutputDir: "out",
		FS:        fsys,
		Clock:     timeutil.NewMockClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
		NewID:     func() string { return "run" },
	}
}

func TestPicker(t *testing.T) {
	t.Parallel()
	var p Picker
	require.NoError(t, p.Add(resample.Point{X: 1, Y: 2}))
	require.NoError(t, p.Add(resample.Point{X: 3, Y: 4}))
	assert.Error(t, p.Add(resample.Point{X: math.NaN(), Y: 0}))

	pts := p.Points()
	assert.Equal(t, []resample.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, pts)
	pts[0].X = 99
	assert.Equal(t, 1.0, p.Points()[0].X)

	assert.True(t, p.Undo())
	assert.Len(t, p.Points(), 1)

	p.Close()
	assert.Empty(t, p.Points())
	assert.ErrorIs(t, p.Add(resample.Point{}), ErrClosed)
	assert.False(t, p.Undo())
}

func TestSession_PickAndProfile(t *testing.T) {
	t.Parallel()
	s, err := New("ramp", rampRaster(), nil, resample.ByStep(3))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Pick(0, 5))
	assert.ErrorIs(t, s.Pick(11, 5), ErrOutsideGrid)
	_, err = s.Profile()
	assert.ErrorIs(t, err, resample.ErrInvalidPath, "one vertex is not a polyline")

	require.NoError(t, s.Pick(10, 5))
	ps, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 6, 9, 10}, ps.Distances())
	for _, p := range ps {
		assert.InDelta(t, p.X+50, p.Z, 1e-9)
	}
}

func TestSession_Export(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	s, err := New("grids/ramp", rampRaster(), newExporter(fsys), resample.ByCount(5))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Pick(0, 0))
	require.NoError(t, s.Pick(4, 0))
	art, err := s.Export("ramp_profile")
	require.NoError(t, err)
	assert.Equal(t, "run", art.RunID)

	ps, h, vertices, err := sidecar.LoadProfile(fsys, filepath.Join("out", "ramp_profile"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, ps.Values())
	assert.Equal(t, []resample.Point{{X: 0, Y: 0}, {X: 4, Y: 0}}, vertices)
	grid, _ := h.Get(sidecar.KeyGrid)
	assert.Equal(t, "grids/ramp", grid)
}

func TestSession_Open(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	var grd bytes.Buffer
	require.NoError(t, sidecar.WriteGrid(&grd, rampRaster()))
	require.NoError(t, fsys.WriteFile("g.grd", grd.Bytes(), 0644))
	require.NoError(t, fsys.WriteFile("g.hdr", []byte("bins: 11\nhist: 11\n"), 0644))

	s, err := Open(fsys, "g", sidecar.DefaultGridShape, nil, resample.ByCount(2))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Pick(10, 10))
	require.NoError(t, s.Pick(0, 0))
	ps, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, []float64{110, 0}, ps.Values())

	_, err = Open(fsys, "missing", sidecar.DefaultGridShape, nil, resample.ByCount(2))
	assert.Error(t, err)
}

func TestSession_OpenFallbackShape(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	var grd bytes.Buffer
	require.NoError(t, sidecar.WriteGrid(&grd, rampRaster()))
	require.NoError(t, fsys.WriteFile("g.grd", grd.Bytes(), 0644))

	_, err := Open(fsys, "g", sidecar.DefaultGridShape, nil, resample.ByCount(2))
	assert.ErrorIs(t, err, sidecar.ErrFormat, "121 rows are not 100x100")

	s, err := Open(fsys, "g", sidecar.Shape{Bins: 11, Hist: 11}, nil, resample.ByCount(2))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Pick(0, 0))
	require.NoError(t, s.Pick(10, 10))
	ps, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 110}, ps.Values())
}

func TestSession_ExportBound(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	s, err := New("grids/ramp", rampRaster(), newExporter(fsys), resample.ByCount(3))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Model()
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	c := testutil.NewCheckpoint()
	assert.ErrorIs(t, s.BindIndex(c, 99), checkpoint.ErrNotFound)
	require.NoError(t, s.BindIndex(c, 4))
	require.NoError(t, s.BindBest(c), "rebinding replaces the model")
	m, err := s.Model()
	require.NoError(t, err)
	assert.Equal(t, 13, m.ModelIdx)

	require.NoError(t, s.Pick(0, 2))
	require.NoError(t, s.Pick(10, 2))
	art, err := s.Export("ridge")
	require.NoError(t, err)
	assert.Equal(t, "ridge_1_20_mod_13", art.Base)

	ps, h, _, err := sidecar.LoadProfile(fsys, filepath.Join("out", "ridge_1_20_mod_13"))
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 25, 30}, ps.Values())
	model, _ := h.Get(sidecar.KeyModel)
	assert.Equal(t, "13", model)
	coefs, _ := h.Get(sidecar.KeyCoefs)
	assert.Equal(t, "[1, 0.0002, 3.5e-07]", coefs)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.BindBest(c), ErrClosed)
}

func TestSession_Close(t *testing.T) {
	t.Parallel()
	s, err := New("ramp", rampRaster(), nil, resample.Sampling{})
	require.NoError(t, err)
	require.NoError(t, s.Pick(1, 1))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	assert.Empty(t, s.Picker().Points())
	assert.ErrorIs(t, s.Pick(2, 2), ErrClosed)
	_, err = s.Profile()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Export("x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()
	r := rampRaster()
	r.X = r.X[:3]
	_, err := New("bad", r, nil, resample.Sampling{})
	assert.ErrorIs(t, err, resample.ErrInvalidRaster)

	_, err = New("ramp", rampRaster(), nil, resample.ByCount(1))
	assert.ErrorIs(t, err, resample.ErrInvalidPath)
}
