package checkpoint

import (
	"math"
	"sort"
)

// Rank returns copies of the candidate models ordered by ascending RMSE, ties
// broken by ascending model index. Records with a NaN RMSE sort last. The
// first element is the best model.
func Rank(c *Checkpoint) ([]ModelRecord, error) {
	if c == nil || len(c.Payload.CrossVal) == 0 {
		return nil, ErrNoCandidates
	}

	ranked := make([]ModelRecord, len(c.Payload.CrossVal))
	for i, rec := range c.Payload.CrossVal {
		ranked[i] = rec.Clone()
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aNaN, bNaN := math.IsNaN(a.RMSE), math.IsNaN(b.RMSE)
		if aNaN != bNaN {
			return bNaN
		}
		if !aNaN && a.RMSE != b.RMSE {
			return a.RMSE < b.RMSE
		}
		return a.ModelIdx < b.ModelIdx
	})
	return ranked, nil
}
