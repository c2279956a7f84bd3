// Package calibration converts heightmap pixel data into real-world units.
//
// Planar coordinates are scaled by the web-tile ground resolution for the
// map's latitude and zoom level. Raw elevations are mapped linearly onto
// [hmin, hmax] using a bit depth detected from the data: 65536 when any raw
// value exceeds 255, otherwise 255. The low branch is 255 rather than 256;
// both values are kept as-is so existing calibrated exports stay comparable.
package calibration

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadius is the WGS84 equatorial radius in meters.
	EarthRadius = 6378137.0

	// TileSize is the pixel width of a web map tile.
	TileSize = 256

	// EquatorialResolution is the ground resolution in meters per pixel at
	// the equator for zoom level 0.
	EquatorialResolution = 2 * math.Pi * EarthRadius / TileSize

	// minCosLatitude keeps the resolution away from the polar singularity.
	minCosLatitude = 1e-9
)

// Supported elevation bit depths.
const (
	Depth8  = 255
	Depth16 = 65536
)

// ErrOutOfRange is returned for latitudes, zoom levels or elevation ranges
// outside the domain of the transform.
var ErrOutOfRange = errors.New("calibration: parameter out of range")

// Resolution returns the ground resolution in meters per pixel at latitude
// (degrees) and zoom. It decreases strictly with zoom and with |latitude|.
func Resolution(latitude, zoom float64) (float64, error) {
	if math.IsNaN(latitude) || latitude <= -90 || latitude >= 90 {
		return 0, fmt.Errorf("%w: latitude %g must lie strictly within (-90, 90)", ErrOutOfRange, latitude)
	}
	cos := math.Cos(latitude * math.Pi / 180)
	if cos < minCosLatitude {
		return 0, fmt.Errorf("%w: latitude %g is too close to a pole", ErrOutOfRange, latitude)
	}
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) || zoom < 0 {
		return 0, fmt.Errorf("%w: zoom %g must be finite and non-negative", ErrOutOfRange, zoom)
	}
	return EquatorialResolution * cos / math.Pow(2, zoom), nil
}

// DetectDepth returns Depth16 when maxRaw exceeds 255 and Depth8 otherwise.
// A NaN maximum (no finite samples) selects Depth8.
func DetectDepth(maxRaw float64) int {
	if maxRaw > 255 {
		return Depth16
	}
	return Depth8
}

// Options are the user-supplied calibration inputs.
type Options struct {
	HMin     float64
	HMax     float64
	Latitude float64
	Zoom     float64
	// InvertY flips raster rows from image order (top row first) to
	// Cartesian order. Point tables and profiles record it only.
	InvertY bool
}

// Params is the provenance record of one calibration. A new calibration
// produces a new Params; records are never merged.
type Params struct {
	HMin       float64 `json:"hmin"`
	HMax       float64 `json:"hmax"`
	Depth      int     `json:"depth"`
	Resolution float64 `json:"resolution"`
	InvertY    bool    `json:"invert_y"`
	Latitude   float64 `json:"latitude"`
	Zoom       float64 `json:"zoom"`
}

// Scale is the meters per raw elevation unit.
func (p Params) Scale() float64 {
	return (p.HMax - p.HMin) / float64(p.Depth)
}

// Elevation maps a raw elevation value to meters.
func (p Params) Elevation(raw float64) float64 {
	return p.Scale()*raw + p.HMin
}

// Uncertainty scales a raw uncertainty value to meters without offset.
func (p Params) Uncertainty(raw float64) float64 {
	return p.Scale() * raw
}

// Planar converts a pixel coordinate to meters.
func (p Params) Planar(raw float64) float64 {
	return raw * p.Resolution
}

// NewParams validates opts, computes the resolution and detects the bit
// depth from the largest raw elevation.
func NewParams(opts Options, maxRaw float64) (Params, error) {
	if math.IsNaN(opts.HMin) || math.IsNaN(opts.HMax) || math.IsInf(opts.HMin, 0) || math.IsInf(opts.HMax, 0) {
		return Params{}, fmt.Errorf("%w: elevation range must be finite", ErrOutOfRange)
	}
	res, err := Resolution(opts.Latitude, opts.Zoom)
	if err != nil {
		return Params{}, err
	}
	return Params{
		HMin:       opts.HMin,
		HMax:       opts.HMax,
		Depth:      DetectDepth(maxRaw),
		Resolution: res,
		InvertY:    opts.InvertY,
		Latitude:   opts.Latitude,
		Zoom:       opts.Zoom,
	}, nil
}

// nanMax returns the largest non-NaN value, or NaN if there is none.
func nanMax(values ...[]float64) float64 {
	m := math.NaN()
	for _, vs := range values {
		for _, v := range vs {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(m) || v > m {
				m = v
			}
		}
	}
	return m
}
