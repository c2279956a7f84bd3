package sidecar

import (
	"io"

	"github.com/banshee-data/geko/internal/calibration"
)

// ColPointZ is the elevation column of a point table.
const ColPointZ = "Z"

var pointColumns = []string{ColX, ColY, ColPointZ}

// ReadPoints reads an X,Y,Z point table. Extra numeric columns are ignored.
func ReadPoints(r io.Reader) (calibration.Points, error) {
	t, err := readTable(r, pointColumns...)
	if err != nil {
		return calibration.Points{}, err
	}
	return calibration.Points{X: t.cols[ColX], Y: t.cols[ColY], Z: t.cols[ColPointZ]}, nil
}

// WritePoints writes pts as an X,Y,Z table.
func WritePoints(w io.Writer, pts calibration.Points) error {
	return writeTable(w, pointColumns, pts.Len(), func(i int) []float64 {
		return []float64{pts.X[i], pts.Y[i], pts.Z[i]}
	})
}
