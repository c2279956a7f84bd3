package sidecar

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geko/internal/calibration"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/resample"
)

// ----------------------------------------------------------------------------
// Header
// ----------------------------------------------------------------------------

func TestParseHeader(t *testing.T) {
	t.Parallel()
	in := "title: survey\n" +
		"no colon here is ignored\n" +
		"bins: 4\n" +
		"\n" +
		"time: 12:30: late\n" +
		"hist: 3\n"
	h, err := ParseHeader(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "bins", "time", "hist"}, h.Keys())
	v, ok := h.Get("time")
	require.True(t, ok)
	assert.Equal(t, "12:30: late", v, "only the first separator splits")

	bins, err := h.Int(KeyBins, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, bins)
	missing, err := h.Int("absent", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, missing)
}

func TestParseHeader_MissingSeparator(t *testing.T) {
	t.Parallel()
	_, err := ParseHeader(strings.NewReader("title: ok\nbins:4\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "line 2")
}

func TestHeader_IntMalformed(t *testing.T) {
	t.Parallel()
	h := NewHeader()
	h.Set(KeyBins, "many")
	_, err := h.Int(KeyBins, 100)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestHeader_WriteParseRoundTrip(t *testing.T) {
	t.Parallel()
	h := NewHeader()
	h.Set(KeyTitle, "valley")
	h.SetInt(KeyBins, 40)
	h.SetFloat(KeyXMin, -12.5)
	h.Set(KeyTitle, "ridge")

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, h))
	assert.Equal(t, "title: ridge\nbins: 40\nxmin: -12.5\n", buf.String())

	back, err := ParseHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h.Keys(), back.Keys())
}

func TestHeader_EmptyValueRoundTrip(t *testing.T) {
	t.Parallel()
	h := NewHeader()
	h.Set(KeyTitle, "")
	h.Set(KeySource, "dem.csv")

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, h))
	assert.Equal(t, "title: \nsource: dem.csv\n", buf.String())

	back, err := ParseHeader(&buf)
	require.NoError(t, err)
	title, ok := back.Get(KeyTitle)
	require.True(t, ok)
	assert.Equal(t, "", title)

	crlf, err := ParseHeader(strings.NewReader("title: \r\nbins: 7  \r\n"))
	require.NoError(t, err)
	bins, err := crlf.Int(KeyBins, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, bins)
}

func TestHeader_Vertices(t *testing.T) {
	t.Parallel()
	h := NewHeader()
	none, err := h.Vertices()
	require.NoError(t, err)
	assert.Nil(t, none)

	in := []resample.Point{{X: 0, Y: 0}, {X: 10.5, Y: -3}, {X: 1e6, Y: 2}}
	require.NoError(t, h.SetVertices(in))
	v, _ := h.Get(KeyVertices)
	assert.Equal(t, "[[0,0],[10.5,-3],[1000000,2]]", v)

	out, err := h.Vertices()
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("vertices mismatch (-want +got):\n%s", diff)
	}

	h.Set(KeyVertices, "[(0, 0), (1, 1)]")
	_, err = h.Vertices()
	assert.ErrorIs(t, err, ErrFormat, "tuple syntax is not accepted")
}

// ----------------------------------------------------------------------------
// Grid
// ----------------------------------------------------------------------------

func sampleRaster() *resample.Raster {
	r := resample.NewRaster([]float64{0, 5, 10}, []float64{100, 150})
	r.Z[0] = []float64{1, 2, 3}
	r.Z[1] = []float64{4, math.NaN(), 6}
	r.Sigma = [][]float64{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}
	return r
}

func TestWriteGrid(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, sampleRaster()))
	want := "X,Y,Z_ESTIM,SIGMA\n" +
		"0,100,1,0.1\n" +
		"5,100,2,0.2\n" +
		"10,100,3,0.3\n" +
		"0,150,4,0.4\n" +
		"5,150,NaN,0.5\n" +
		"10,150,6,0.6\n"
	assert.Equal(t, want, buf.String())
}

func TestReadGrid_RoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, sampleRaster()))
	in := "# exported grid\n" + buf.String()

	r, err := ReadGrid(strings.NewReader(in), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10}, r.X)
	assert.Equal(t, []float64{100, 150}, r.Y)
	assert.Equal(t, 6.0, r.Z[1][2])
	assert.True(t, math.IsNaN(r.Z[1][1]))
	assert.Equal(t, 0.5, r.Sigma[1][1])
}

func TestReadGrid_Errors(t *testing.T) {
	t.Parallel()
	good := "X,Y,Z_ESTIM,SIGMA\n0,0,1,1\n1,0,1,1\n"
	tests := []struct {
		name       string
		in         string
		bins, hist int
	}{
		{"empty", "", 2, 1},
		{"missing column", "X,Y,Z_ESTIM\n0,0,1\n1,0,1\n", 2, 1},
		{"bad number", "X,Y,Z_ESTIM,SIGMA\n0,0,x,1\n1,0,1,1\n", 2, 1},
		{"ragged row", "X,Y,Z_ESTIM,SIGMA\n0,0,1\n1,0,1,1\n", 2, 1},
		{"shape mismatch", good, 3, 1},
		{"zero bins", good, 0, 1},
		{"descending axis", "X,Y,Z_ESTIM,SIGMA\n1,0,1,1\n0,0,1,1\n", 2, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadGrid(strings.NewReader(tc.in), tc.bins, tc.hist)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestLoadGrid(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	var grd bytes.Buffer
	require.NoError(t, WriteGrid(&grd, sampleRaster()))
	require.NoError(t, fsys.WriteFile("out/g.grd", grd.Bytes(), 0644))
	require.NoError(t, fsys.WriteFile("out/g.hdr", []byte("bins: 3\nhist: 2\ntitle: g\n"), 0644))

	r, h, err := LoadGrid(fsys, "out/g")
	require.NoError(t, err)
	assert.Equal(t, 3, r.NCols())
	title, _ := h.Get(KeyTitle)
	assert.Equal(t, "g", title)
}

func TestLoadGrid_MissingHeaderFallsBack(t *testing.T) {
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	x := make([]float64, DefaultShape)
	for i := range x {
		x[i] = float64(i)
	}
	r := resample.NewRaster(x, x)
	for i := range r.Z {
		for j := range r.Z[i] {
			r.Z[i][j] = float64(i * j)
		}
	}
	var grd bytes.Buffer
	require.NoError(t, WriteGrid(&grd, r))
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("g.grd", grd.Bytes(), 0644))

	got, h, err := LoadGrid(fsys, "g")
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, DefaultShape, got.NCols())
	assert.Equal(t, DefaultShape, got.NRows())
	assert.Equal(t, 99.0*98.0, got.Z[99][98])
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "g.hdr")
}

func TestLoadGridShape_Fallback(t *testing.T) {
	t.Parallel()
	var grd bytes.Buffer
	require.NoError(t, WriteGrid(&grd, sampleRaster()))
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("g.grd", grd.Bytes(), 0644))
	// A header without shape keys also falls back.
	require.NoError(t, fsys.WriteFile("g.hdr", []byte("title: g\n"), 0644))

	r, _, err := LoadGridShape(fsys, "g", Shape{Bins: 3, Hist: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, r.NCols())
	assert.Equal(t, 2, r.NRows())

	_, _, err = LoadGrid(fsys, "g")
	assert.Error(t, err, "6 rows do not fill the default 100x100 grid")

	_, _, err = LoadGridShape(fsys, "g", Shape{})
	assert.Error(t, err)
}

func TestLoadGrid_MissingGrid(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("g.hdr", []byte("bins: 2\n"), 0644))
	_, _, err := LoadGrid(fsys, "g")
	assert.Error(t, err)
}

// ----------------------------------------------------------------------------
// Profile
// ----------------------------------------------------------------------------

func TestProfile_RoundTrip(t *testing.T) {
	t.Parallel()
	ps := resample.ProfileSample{
		{Distance: 0, X: 0, Y: 0, Z: 10, Sigma: 1},
		{Distance: 30, X: 30, Y: 0, Z: 12.5, Sigma: 1.5},
		{Distance: 50, X: 50, Y: 0, Z: math.NaN(), Sigma: math.NaN()},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, ps))
	assert.True(t, strings.HasPrefix(buf.String(), "distance,X,Y,Z_ESTIM,SIGMA\n"))

	back, err := ReadProfile(&buf)
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, ps[1], back[1])
	assert.True(t, math.IsNaN(back[2].Z))
}

func TestReadProfile_RecomputesDistance(t *testing.T) {
	t.Parallel()
	in := "X,Y,Z_ESTIM,SIGMA\n0,0,1,0\n3,4,2,0\n3,10,3,0\n"
	ps, err := ReadProfile(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 11}, ps.Distances())
}

func TestReadProfile_DecreasingDistance(t *testing.T) {
	t.Parallel()
	in := "distance,X,Y,Z_ESTIM,SIGMA\n0,0,0,1,0\n5,1,0,1,0\n4,2,0,1,0\n"
	_, err := ReadProfile(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	h := NewHeader()
	require.NoError(t, h.SetVertices([]resample.Point{{X: 0, Y: 0}, {X: 3, Y: 4}}))
	var hdr, prf bytes.Buffer
	require.NoError(t, WriteHeader(&hdr, h))
	require.NoError(t, WriteProfile(&prf, resample.ProfileSample{{X: 0, Y: 0, Z: 1}, {Distance: 5, X: 3, Y: 4, Z: 2}}))
	require.NoError(t, fsys.WriteFile("p.hdr", hdr.Bytes(), 0644))
	require.NoError(t, fsys.WriteFile("p.prf", prf.Bytes(), 0644))

	ps, _, vertices, err := LoadProfile(fsys, "p")
	require.NoError(t, err)
	assert.Len(t, ps, 2)
	assert.Equal(t, []resample.Point{{X: 0, Y: 0}, {X: 3, Y: 4}}, vertices)
}

// ----------------------------------------------------------------------------
// Calibration report
// ----------------------------------------------------------------------------

func TestCalibrationReport_RoundTrip(t *testing.T) {
	t.Parallel()
	p := calibration.Params{
		HMin: 120, HMax: 1850, Depth: calibration.Depth16,
		Resolution: 19.109257071294063, InvertY: true, Latitude: 40.4, Zoom: 13,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCalibration(&buf, p, "dem.csv"))
	assert.True(t, strings.HasPrefix(buf.String(), "source: dem.csv\nhmin: 120\n"))

	back, err := ReadCalibration(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestCalibrationReport_Errors(t *testing.T) {
	t.Parallel()
	base := "hmin: 0\nhmax: 1\nresolution: 1\nlatitude: 0\nzoom: 0\ninvert_y: false\n"

	_, err := ReadCalibration(strings.NewReader(base + "depth: 256\n"))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = ReadCalibration(strings.NewReader(strings.Replace(base, "hmax: 1\n", "", 1) + "depth: 255\n"))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = ReadCalibration(strings.NewReader(strings.Replace(base, "false", "maybe", 1) + "depth: 255\n"))
	assert.ErrorIs(t, err, ErrFormat)

	p, err := ReadCalibration(strings.NewReader(base + "depth: 255\n"))
	require.NoError(t, err)
	assert.Equal(t, calibration.Depth8, p.Depth)
}

func TestPoints_RoundTrip(t *testing.T) {
	t.Parallel()
	in := "X,Y,Z,label\n0,0,12,1\n1,0,255,2\n"
	pts, err := ReadPoints(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, pts.X)
	assert.Equal(t, []float64{12, 255}, pts.Z)

	var buf bytes.Buffer
	require.NoError(t, WritePoints(&buf, pts))
	assert.Equal(t, "X,Y,Z\n0,0,12\n1,0,255\n", buf.String())

	_, err = ReadPoints(strings.NewReader("X,Y\n1,2\n"))
	assert.ErrorIs(t, err, ErrFormat)
}
