// Package registry selects fitted models from a loaded checkpoint and renders
// the ranked model reports used by the geko CLI.
package registry

import (
	"fmt"

	"github.com/banshee-data/geko/internal/checkpoint"
)

// Select returns a copy of the record with the given model index.
func Select(c *checkpoint.Checkpoint, modelIdx int) (checkpoint.ModelRecord, error) {
	if c == nil || c.Len() == 0 {
		return checkpoint.ModelRecord{}, checkpoint.ErrNoCandidates
	}
	for _, rec := range c.Payload.CrossVal {
		if rec.ModelIdx == modelIdx {
			return rec.Clone(), nil
		}
	}
	return checkpoint.ModelRecord{}, fmt.Errorf("%w: model index %d", checkpoint.ErrNotFound, modelIdx)
}

// Best returns the first ranked record, the candidate with the lowest RMSE.
func Best(c *checkpoint.Checkpoint) (checkpoint.ModelRecord, error) {
	ranked, err := checkpoint.Rank(c)
	if err != nil {
		return checkpoint.ModelRecord{}, err
	}
	return ranked[0], nil
}
