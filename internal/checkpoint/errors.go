package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a checkpoint file, a model index or any
	// candidate model is missing.
	ErrNotFound = errors.New("checkpoint: not found")

	// ErrCorrupt matches every *CorruptionError.
	ErrCorrupt = errors.New("checkpoint: corrupt container")

	// ErrNoCandidates is returned when the cross-validation sequence is empty.
	// It matches ErrNotFound.
	ErrNoCandidates = fmt.Errorf("%w: no candidate models", ErrNotFound)
)

// CorruptionError reports a checkpoint that exists but could not be decoded
// or lacks the expected structure. Err holds the underlying failure.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("checkpoint: error reading %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorrupt) hold for any CorruptionError.
func (e *CorruptionError) Is(target error) bool { return target == ErrCorrupt }
