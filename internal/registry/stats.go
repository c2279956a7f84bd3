package registry

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/geko/internal/checkpoint"
)

// Spread summarises the cross-validated RMSE over all candidates that have a
// finite RMSE.
type Spread struct {
	Count    int
	MeanRMSE float64
	StdRMSE  float64
	MinRMSE  float64
	MaxRMSE  float64
}

// RMSESpread computes the RMSE spread of the candidates in c. Count is zero
// when no candidate has a finite RMSE.
func RMSESpread(c *checkpoint.Checkpoint) Spread {
	var xs []float64
	for _, rec := range c.Payload.CrossVal {
		if !math.IsNaN(rec.RMSE) && !math.IsInf(rec.RMSE, 0) {
			xs = append(xs, rec.RMSE)
		}
	}
	if len(xs) == 0 {
		return Spread{}
	}

	s := Spread{Count: len(xs), MinRMSE: math.Inf(1), MaxRMSE: math.Inf(-1)}
	if len(xs) > 1 {
		s.MeanRMSE, s.StdRMSE = stat.MeanStdDev(xs, nil)
	} else {
		s.MeanRMSE = xs[0]
	}
	for _, x := range xs {
		s.MinRMSE = math.Min(s.MinRMSE, x)
		s.MaxRMSE = math.Max(s.MaxRMSE, x)
	}
	return s
}
