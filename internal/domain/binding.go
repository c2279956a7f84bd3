// Package domain describes where estimates are requested: a regular Grid
// window or a polyline Profile. Both carry a model binding that must be set
// before anything is asked of an Estimator.
package domain

import (
	"errors"
	"fmt"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/registry"
)

var (
	// ErrPrecondition is returned when an estimate is requested from a
	// domain that has no model bound.
	ErrPrecondition = errors.New("domain: no model bound")

	// ErrInvalidDomain is returned for degenerate windows, shapes or paths.
	ErrInvalidDomain = errors.New("domain: invalid estimation domain")
)

// State is the binding state of a domain.
type State int

const (
	Unbound State = iota
	Bound
)

func (s State) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// Binding holds the model a domain is bound to. The zero value is Unbound.
// Binding again replaces the previous model.
type Binding struct {
	state  State
	model  checkpoint.ModelRecord
	params checkpoint.Params
}

// Bind binds rec directly. Coefficients are copied so later changes to rec
// do not leak into the domain.
func (b *Binding) Bind(rec checkpoint.ModelRecord) {
	b.model = rec.Clone()
	b.params = checkpoint.Params{}
	b.state = Bound
}

// BindIndex binds the record with model_idx idx from c.
func (b *Binding) BindIndex(c *checkpoint.Checkpoint, idx int) error {
	rec, err := registry.Select(c, idx)
	if err != nil {
		return fmt.Errorf("bind model %d: %w", idx, err)
	}
	b.Bind(rec)
	b.params = c.Metadata.Params
	return nil
}

// BindBest binds the lowest-RMSE record from c.
func (b *Binding) BindBest(c *checkpoint.Checkpoint) error {
	rec, err := registry.Best(c)
	if err != nil {
		return fmt.Errorf("bind best model: %w", err)
	}
	b.Bind(rec)
	b.params = c.Metadata.Params
	return nil
}

// State reports whether a model is bound.
func (b *Binding) State() State { return b.state }

// Model returns a copy of the bound record.
func (b *Binding) Model() (checkpoint.ModelRecord, error) {
	if b.state != Bound {
		return checkpoint.ModelRecord{}, ErrPrecondition
	}
	return b.model.Clone(), nil
}

// Params returns the checkpoint parameters recorded at bind time. They are
// zero when the domain was bound with Bind.
func (b *Binding) Params() checkpoint.Params { return b.params }
