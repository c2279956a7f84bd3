package sidecar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/resample"
)

var gridColumns = []string{ColX, ColY, ColZ, ColSigma}

// WriteGrid writes r row by row. A raster without a Sigma layer is written
// with NaN uncertainty.
func WriteGrid(w io.Writer, r *resample.Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	cols := r.NCols()
	return writeTable(w, gridColumns, r.NRows()*cols, func(k int) []float64 {
		i, j := k/cols, k%cols
		sigma := nan
		if r.Sigma != nil {
			sigma = r.Sigma[i][j]
		}
		return []float64{r.X[j], r.Y[i], r.Z[i][j], sigma}
	})
}

// ReadGrid reads a row-major table of hist rows by bins columns. The axes
// come from the first row (X) and the first column (Y).
func ReadGrid(rd io.Reader, bins, hist int) (*resample.Raster, error) {
	if bins <= 0 || hist <= 0 {
		return nil, fmt.Errorf("%w: bins=%d hist=%d", ErrFormat, bins, hist)
	}
	t, err := readTable(rd, gridColumns...)
	if err != nil {
		return nil, err
	}
	if t.rows != bins*hist {
		return nil, fmt.Errorf("%w: %d rows cannot be reshaped to %dx%d", ErrFormat, t.rows, hist, bins)
	}

	xs, ys := t.cols[ColX], t.cols[ColY]
	x := append([]float64(nil), xs[:bins]...)
	y := make([]float64, hist)
	for i := range y {
		y[i] = ys[i*bins]
	}

	r := resample.NewRaster(x, y)
	r.Sigma = make([][]float64, hist)
	for i := 0; i < hist; i++ {
		copy(r.Z[i], t.cols[ColZ][i*bins:(i+1)*bins])
		r.Sigma[i] = append([]float64(nil), t.cols[ColSigma][i*bins:(i+1)*bins]...)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return r, nil
}

// Shape is the bins x hist size assumed for a grid whose header is missing
// or omits either key.
type Shape struct {
	Bins int
	Hist int
}

// DefaultGridShape is DefaultShape in both directions.
var DefaultGridShape = Shape{Bins: DefaultShape, Hist: DefaultShape}

// LoadGrid reads base+".hdr" and base+".grd", falling back to
// DefaultGridShape when the header does not give the shape.
func LoadGrid(fsys fsutil.FileSystem, base string) (*resample.Raster, *Header, error) {
	return LoadGridShape(fsys, base, DefaultGridShape)
}

// LoadGridShape is LoadGrid with an explicit fallback shape.
func LoadGridShape(fsys fsutil.FileSystem, base string, fallback Shape) (*resample.Raster, *Header, error) {
	if fallback.Bins <= 0 || fallback.Hist <= 0 {
		return nil, nil, fmt.Errorf("invalid fallback grid shape %dx%d", fallback.Bins, fallback.Hist)
	}
	h, _, err := ReadHeaderFile(fsys, base)
	if err != nil {
		return nil, nil, err
	}
	bins, err := h.Int(KeyBins, fallback.Bins)
	if err != nil {
		return nil, nil, err
	}
	hist, err := h.Int(KeyHist, fallback.Hist)
	if err != nil {
		return nil, nil, err
	}

	path := base + ExtGrid
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	r, err := ReadGrid(bytes.NewReader(data), bins, hist)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, h, nil
}
