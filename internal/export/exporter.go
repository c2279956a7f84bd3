// Package export writes derived artifacts (grids, profiles, calibrated point
// tables and calibration reports) under a single configured output
// directory.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/banshee-data/geko/internal/calibration"
	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/resample"
	"github.com/banshee-data/geko/internal/security"
	"github.com/banshee-data/geko/internal/sidecar"
	"github.com/banshee-data/geko/internal/timeutil"
)

// ExtPoints is the extension of calibrated point tables.
const ExtPoints = ".csv"

// Exporter writes artifacts below OutputDir. Names passed to the Export
// methods are relative to OutputDir and may not leave it.
type Exporter struct {
	OutputDir string
	FS        fsutil.FileSystem
	Clock     timeutil.Clock
	// NewID returns the run identifier stamped into headers.
	NewID func() string
}

// New returns an Exporter on the OS filesystem.
func New(outputDir string) *Exporter {
	return &Exporter{
		OutputDir: outputDir,
		FS:        fsutil.OSFileSystem{},
		Clock:     timeutil.RealClock{},
		NewID:     func() string { return uuid.New().String() },
	}
}

// Artifact describes one export.
type Artifact struct {
	RunID string
	Base  string
	Paths []string
}

func (e *Exporter) validate() error {
	if e.OutputDir == "" {
		return errors.New("export: output directory not configured")
	}
	if e.FS == nil {
		e.FS = fsutil.OSFileSystem{}
	}
	if e.Clock == nil {
		e.Clock = timeutil.RealClock{}
	}
	if e.NewID == nil {
		e.NewID = func() string { return uuid.New().String() }
	}
	return nil
}

// resolve maps a relative name to a path under OutputDir and creates its
// parent directory. On the OS filesystem the path is also checked against
// symlinks leading out of OutputDir.
func (e *Exporter) resolve(name string) (string, error) {
	path, err := security.ResolveOutputPath(e.OutputDir, name)
	if err != nil {
		return "", err
	}
	if err := e.FS.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if _, ok := e.FS.(fsutil.OSFileSystem); ok {
		if err := security.ValidatePathWithinDirectory(path, e.OutputDir); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (e *Exporter) write(name string, render func(*bytes.Buffer) error) (string, error) {
	path, err := e.resolve(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := e.FS.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// stamp fills the run entries common to every header and returns the run ID.
func (e *Exporter) stamp(h *sidecar.Header, base string) string {
	id := e.NewID()
	if _, ok := h.Get(sidecar.KeyTitle); !ok {
		h.Set(sidecar.KeyTitle, filepath.Base(base))
	}
	h.Set(sidecar.KeyRunID, id)
	h.Set(sidecar.KeyCreatedAt, timeutil.FormatCreatedAt(e.Clock.Now()))
	return id
}

// ExportGrid writes base.grd and base.hdr. extra may carry model entries
// (see DescribeModel); it is not modified.
func (e *Exporter) ExportGrid(base string, r *resample.Raster, extra *sidecar.Header) (Artifact, error) {
	if err := e.validate(); err != nil {
		return Artifact{}, err
	}
	if err := r.Validate(); err != nil {
		return Artifact{}, err
	}

	h := copyHeader(extra)
	h.SetInt(sidecar.KeyBins, r.NCols())
	h.SetInt(sidecar.KeyHist, r.NRows())
	xmin, xmax, ymin, ymax := r.Bounds()
	h.SetFloat(sidecar.KeyXMin, xmin)
	h.SetFloat(sidecar.KeyXMax, xmax)
	h.SetFloat(sidecar.KeyYMin, ymin)
	h.SetFloat(sidecar.KeyYMax, ymax)
	id := e.stamp(h, base)

	grd, err := e.write(base+sidecar.ExtGrid, func(b *bytes.Buffer) error { return sidecar.WriteGrid(b, r) })
	if err != nil {
		return Artifact{}, err
	}
	hdr, err := e.write(base+sidecar.ExtHeader, func(b *bytes.Buffer) error { return sidecar.WriteHeader(b, h) })
	if err != nil {
		return Artifact{}, err
	}
	monitoring.Logf("exported grid %s (%dx%d)", grd, r.NRows(), r.NCols())
	return Artifact{RunID: id, Base: base, Paths: []string{grd, hdr}}, nil
}

// ExportProfile writes base.prf and base.hdr, recording the vertices and
// sampling mode that produced ps.
func (e *Exporter) ExportProfile(base string, ps resample.ProfileSample, vertices []resample.Point, s resample.Sampling, extra *sidecar.Header) (Artifact, error) {
	if err := e.validate(); err != nil {
		return Artifact{}, err
	}

	h := copyHeader(extra)
	if err := h.SetVertices(vertices); err != nil {
		return Artifact{}, err
	}
	h.Set(sidecar.KeySampling, s.String())
	h.SetInt(sidecar.KeyPoints, len(ps))
	id := e.stamp(h, base)

	prf, err := e.write(base+sidecar.ExtProfile, func(b *bytes.Buffer) error { return sidecar.WriteProfile(b, ps) })
	if err != nil {
		return Artifact{}, err
	}
	hdr, err := e.write(base+sidecar.ExtHeader, func(b *bytes.Buffer) error { return sidecar.WriteHeader(b, h) })
	if err != nil {
		return Artifact{}, err
	}
	monitoring.Logf("exported profile %s (%d samples)", prf, len(ps))
	return Artifact{RunID: id, Base: base, Paths: []string{prf, hdr}}, nil
}

// ExportPoints writes a calibrated point table as base.csv and its
// calibration report as base.cal.
func (e *Exporter) ExportPoints(base string, pts calibration.Points, p calibration.Params, source string) (Artifact, error) {
	if err := e.validate(); err != nil {
		return Artifact{}, err
	}
	csv, err := e.write(base+ExtPoints, func(b *bytes.Buffer) error { return sidecar.WritePoints(b, pts) })
	if err != nil {
		return Artifact{}, err
	}
	cal, err := e.ExportCalibration(base, p, source)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Base: base, Paths: []string{csv, cal}}, nil
}

// ExportCalibration writes the calibration report base.cal.
func (e *Exporter) ExportCalibration(base string, p calibration.Params, source string) (string, error) {
	if err := e.validate(); err != nil {
		return "", err
	}
	return e.write(base+sidecar.ExtCalibration, func(b *bytes.Buffer) error {
		return sidecar.WriteCalibration(b, p, source)
	})
}

// DescribeModel records the model a derived artifact was estimated with.
func DescribeModel(h *sidecar.Header, params checkpoint.Params, rec checkpoint.ModelRecord) {
	h.SetInt(sidecar.KeyNork, params.Nork)
	h.SetInt(sidecar.KeyNvec, params.Nvec)
	h.SetInt(sidecar.KeyModel, rec.ModelIdx)
	h.SetFloat(sidecar.KeyRMSE, rec.RMSE)
	h.Set(sidecar.KeyCoefs, formatCoefficients(rec.Coefficients))
}

func formatCoefficients(c []float64) string {
	b := []byte{'['}
	for i, v := range c {
		if i > 0 {
			b = append(b, ',', ' ')
		}
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	return string(append(b, ']'))
}

func copyHeader(h *sidecar.Header) *sidecar.Header {
	out := sidecar.NewHeader()
	if h == nil {
		return out
	}
	for _, k := range h.Keys() {
		v, _ := h.Get(k)
		out.Set(k, v)
	}
	return out
}
