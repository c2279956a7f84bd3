// Package sidecar reads and writes the plain-text files that accompany an
// estimate: raster (.grd) and profile (.prf) CSV tables, the key/value
// header (.hdr) describing them and the calibration report (.cal).
package sidecar

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/resample"
)

// ErrFormat is returned for malformed sidecar content.
var ErrFormat = errors.New("sidecar: malformed file")

// File extensions.
const (
	ExtGrid        = ".grd"
	ExtProfile     = ".prf"
	ExtHeader      = ".hdr"
	ExtCalibration = ".cal"
)

// Well-known header keys.
const (
	KeyTitle     = "title"
	KeyBins      = "bins"
	KeyHist      = "hist"
	KeyVertices  = "vertices"
	KeySampling  = "sampling"
	KeyModel     = "model"
	KeyNork      = "nork"
	KeyNvec      = "nvec"
	KeyRunID     = "run_id"
	KeyCreatedAt = "created_at"
	KeySource    = "source"
	KeyGrid      = "grid"
	KeyPoints    = "points"
	KeyXMin      = "xmin"
	KeyXMax      = "xmax"
	KeyYMin      = "ymin"
	KeyYMax      = "ymax"
	KeyRMSE      = "rmse"
	KeyCoefs     = "coefficients"
)

// DefaultShape is used for bins and hist when a grid has no header.
const DefaultShape = 100

const separator = ": "

// Header is an ordered set of key/value pairs. Setting an existing key keeps
// its original position.
type Header struct {
	keys   []string
	values map[string]string
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{values: make(map[string]string)}
}

// Set stores value under key.
func (h *Header) Set(key, value string) {
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// SetInt stores an integer value.
func (h *Header) SetInt(key string, v int) { h.Set(key, strconv.Itoa(v)) }

// SetFloat stores a float in shortest round-trip form.
func (h *Header) SetFloat(key string, v float64) {
	h.Set(key, strconv.FormatFloat(v, 'g', -1, 64))
}

// Get returns the value for key.
func (h *Header) Get(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (h *Header) Keys() []string { return append([]string(nil), h.keys...) }

// Len returns the number of entries.
func (h *Header) Len() int { return len(h.keys) }

// Int returns the integer stored under key, or def when the key is absent.
func (h *Header) Int(key string, def int) (int, error) {
	v, ok := h.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: header %q: %v", ErrFormat, key, err)
	}
	return n, nil
}

// Float returns the float stored under key.
func (h *Header) Float(key string) (float64, error) {
	v, ok := h.values[key]
	if !ok {
		return 0, fmt.Errorf("%w: header key %q missing", ErrFormat, key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: header %q: %v", ErrFormat, key, err)
	}
	return f, nil
}

// SetVertices stores vertices as a JSON array of [x, y] pairs.
func (h *Header) SetVertices(vertices []resample.Point) error {
	pairs := make([][2]float64, len(vertices))
	for i, v := range vertices {
		pairs[i] = [2]float64{v.X, v.Y}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("encode vertices: %w", err)
	}
	h.Set(KeyVertices, string(data))
	return nil
}

// Vertices decodes the vertices entry. It returns nil and no error when the
// key is absent.
func (h *Header) Vertices() ([]resample.Point, error) {
	v, ok := h.values[KeyVertices]
	if !ok {
		return nil, nil
	}
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(v), &pairs); err != nil {
		return nil, fmt.Errorf("%w: vertices: %v", ErrFormat, err)
	}
	out := make([]resample.Point, len(pairs))
	for i, p := range pairs {
		out[i] = resample.Point{X: p[0], Y: p[1]}
	}
	return out, nil
}

// ParseHeader reads key/value lines. Lines without a colon are ignored; a
// line with a colon but no ": " separator is a format error.
func ParseHeader(r io.Reader) (*Header, error) {
	h := NewHeader()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		// Only the line break is trimmed before the cut so that an empty
		// value written as "key: " still carries its separator.
		line := strings.TrimLeft(strings.TrimRight(sc.Text(), "\r\n"), " \t")
		if !strings.Contains(line, ":") {
			continue
		}
		key, value, ok := strings.Cut(line, separator)
		if !ok {
			return nil, fmt.Errorf("%w: header line %d: missing %q separator", ErrFormat, lineNo, separator)
		}
		h.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return h, nil
}

// WriteHeader writes h as key/value lines in insertion order.
func WriteHeader(w io.Writer, h *Header) error {
	bw := bufio.NewWriter(w)
	for _, k := range h.keys {
		if _, err := fmt.Fprintf(bw, "%s%s%s\n", k, separator, h.values[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadHeaderFile loads base+".hdr". A missing file is not an error: it is
// logged and an empty header is returned with found=false.
func ReadHeaderFile(fsys fsutil.FileSystem, base string) (h *Header, found bool, err error) {
	path := base + ExtHeader
	data, err := fsys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		monitoring.Warnf("metadata file not found %s", path)
		return NewHeader(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	h, err = ParseHeader(strings.NewReader(string(data)))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return h, true, nil
}
