package calibration

import (
	"fmt"

	"github.com/banshee-data/geko/internal/resample"
)

// Points is a raw point table in pixel units.
type Points struct {
	X []float64
	Y []float64
	Z []float64
}

// Len returns the number of points.
func (p Points) Len() int { return len(p.X) }

// CalibratePoints scales X and Y by the ground resolution and maps Z onto the
// elevation range. The input is not modified.
func CalibratePoints(pts Points, opts Options) (Points, Params, error) {
	if len(pts.Y) != len(pts.X) || len(pts.Z) != len(pts.X) {
		return Points{}, Params{}, fmt.Errorf("calibration: column lengths differ (x=%d y=%d z=%d)", len(pts.X), len(pts.Y), len(pts.Z))
	}
	params, err := NewParams(opts, nanMax(pts.Z))
	if err != nil {
		return Points{}, Params{}, err
	}

	out := Points{
		X: make([]float64, pts.Len()),
		Y: make([]float64, pts.Len()),
		Z: make([]float64, pts.Len()),
	}
	for i := range pts.X {
		out.X[i] = params.Planar(pts.X[i])
		out.Y[i] = params.Planar(pts.Y[i])
		out.Z[i] = params.Elevation(pts.Z[i])
	}
	return out, params, nil
}

// CalibrateRaster returns a calibrated copy of r. Axes are scaled by the
// ground resolution, Z is mapped onto the elevation range and Sigma is scaled
// without offset. With InvertY the row order of Z and Sigma is reversed; the
// axes and the column order are left alone. The bit depth is detected from
// the Z layer.
func CalibrateRaster(r *resample.Raster, opts Options) (*resample.Raster, Params, error) {
	if err := r.Validate(); err != nil {
		return nil, Params{}, err
	}
	params, err := NewParams(opts, nanMax(r.Z...))
	if err != nil {
		return nil, Params{}, err
	}

	out := r.Clone()
	for i := range out.X {
		out.X[i] = params.Planar(out.X[i])
	}
	for i := range out.Y {
		out.Y[i] = params.Planar(out.Y[i])
	}
	for _, row := range out.Z {
		for j := range row {
			row[j] = params.Elevation(row[j])
		}
	}
	for _, row := range out.Sigma {
		for j := range row {
			row[j] = params.Uncertainty(row[j])
		}
	}
	if params.InvertY {
		flipRows(out.Z)
		flipRows(out.Sigma)
	}
	return out, params, nil
}

func flipRows(layer [][]float64) {
	for i, j := 0, len(layer)-1; i < j; i, j = i+1, j-1 {
		layer[i], layer[j] = layer[j], layer[i]
	}
}

// CalibrateProfile converts a profile sampled from an uncalibrated raster:
// distances are scaled by the ground resolution and Z/Sigma are mapped as
// for rasters. X and Y stay in source units.
func CalibrateProfile(ps resample.ProfileSample, opts Options) (resample.ProfileSample, Params, error) {
	params, err := NewParams(opts, nanMax(ps.Values()))
	if err != nil {
		return nil, Params{}, err
	}
	out := make(resample.ProfileSample, len(ps))
	for i, p := range ps {
		out[i] = resample.ProfilePoint{
			Distance: params.Planar(p.Distance),
			X:        p.X,
			Y:        p.Y,
			Z:        params.Elevation(p.Z),
			Sigma:    params.Uncertainty(p.Sigma),
		}
	}
	return out, params, nil
}
