package sidecar

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/resample"
)

var nan = math.NaN()

var profileColumns = []string{ColDistance, ColX, ColY, ColZ, ColSigma}

// WriteProfile writes one row per sample.
func WriteProfile(w io.Writer, ps resample.ProfileSample) error {
	return writeTable(w, profileColumns, len(ps), func(i int) []float64 {
		p := ps[i]
		return []float64{p.Distance, p.X, p.Y, p.Z, p.Sigma}
	})
}

// ReadProfile reads a profile table. When the distance column is absent it
// is recomputed as cumulative arc length over X/Y.
func ReadProfile(rd io.Reader) (resample.ProfileSample, error) {
	t, err := readTable(rd, ColX, ColY, ColZ, ColSigma)
	if err != nil {
		return nil, err
	}
	xs, ys := t.cols[ColX], t.cols[ColY]
	dist := t.cols[ColDistance]
	if !t.has(ColDistance) {
		dist = resample.CumulativeDistance(xs, ys)
	}

	out := make(resample.ProfileSample, t.rows)
	for i := range out {
		out[i] = resample.ProfilePoint{
			Distance: dist[i],
			X:        xs[i],
			Y:        ys[i],
			Z:        t.cols[ColZ][i],
			Sigma:    t.cols[ColSigma][i],
		}
		if i > 0 && out[i].Distance < out[i-1].Distance {
			return nil, fmt.Errorf("%w: distance decreases at row %d", ErrFormat, i+1)
		}
	}
	return out, nil
}

// LoadProfile reads base+".hdr" and base+".prf" and decodes the stored
// vertices, if any.
func LoadProfile(fsys fsutil.FileSystem, base string) (resample.ProfileSample, *Header, []resample.Point, error) {
	h, _, err := ReadHeaderFile(fsys, base)
	if err != nil {
		return nil, nil, nil, err
	}
	vertices, err := h.Vertices()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s%s: %w", base, ExtHeader, err)
	}

	path := base + ExtProfile
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	ps, err := ReadProfile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, h, vertices, nil
}
