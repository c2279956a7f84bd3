package sidecar

import (
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/geko/internal/calibration"
)

// Calibration report keys.
const (
	KeyHMin       = "hmin"
	KeyHMax       = "hmax"
	KeyDepth      = "depth"
	KeyResolution = "resolution"
	KeyLatitude   = "latitude"
	KeyZoom       = "zoom"
	KeyInvertY    = "invert_y"
)

// CalibrationHeader returns the report for p. source names the calibrated
// input and is omitted when empty.
func CalibrationHeader(p calibration.Params, source string) *Header {
	h := NewHeader()
	if source != "" {
		h.Set(KeySource, source)
	}
	h.SetFloat(KeyHMin, p.HMin)
	h.SetFloat(KeyHMax, p.HMax)
	h.SetInt(KeyDepth, p.Depth)
	h.SetFloat(KeyResolution, p.Resolution)
	h.SetFloat(KeyLatitude, p.Latitude)
	h.SetFloat(KeyZoom, p.Zoom)
	h.Set(KeyInvertY, strconv.FormatBool(p.InvertY))
	return h
}

// WriteCalibration writes the calibration report.
func WriteCalibration(w io.Writer, p calibration.Params, source string) error {
	return WriteHeader(w, CalibrationHeader(p, source))
}

// ReadCalibration parses a report written by WriteCalibration.
func ReadCalibration(r io.Reader) (calibration.Params, error) {
	h, err := ParseHeader(r)
	if err != nil {
		return calibration.Params{}, err
	}
	return CalibrationFromHeader(h)
}

// CalibrationFromHeader extracts calibration params from h.
func CalibrationFromHeader(h *Header) (calibration.Params, error) {
	var p calibration.Params
	var err error
	floats := []struct {
		key string
		dst *float64
	}{
		{KeyHMin, &p.HMin},
		{KeyHMax, &p.HMax},
		{KeyResolution, &p.Resolution},
		{KeyLatitude, &p.Latitude},
		{KeyZoom, &p.Zoom},
	}
	for _, f := range floats {
		if *f.dst, err = h.Float(f.key); err != nil {
			return calibration.Params{}, err
		}
	}

	if p.Depth, err = h.Int(KeyDepth, 0); err != nil {
		return calibration.Params{}, err
	}
	if p.Depth != calibration.Depth8 && p.Depth != calibration.Depth16 {
		return calibration.Params{}, fmt.Errorf("%w: unsupported depth %d", ErrFormat, p.Depth)
	}

	inv, ok := h.Get(KeyInvertY)
	if !ok {
		return calibration.Params{}, fmt.Errorf("%w: header key %q missing", ErrFormat, KeyInvertY)
	}
	if p.InvertY, err = strconv.ParseBool(inv); err != nil {
		return calibration.Params{}, fmt.Errorf("%w: %s: %v", ErrFormat, KeyInvertY, err)
	}
	return p, nil
}
