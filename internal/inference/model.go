package inference

import (
	"context"
	"sync/atomic"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/feature"
)

// Model maps a standardized feature vector to a standardized next close
type Model interface {
	Infer(ctx context.Context, features []float64) (float64, error)
	Shape() feature.Shape
}

// Loader produces a ready Model
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// Holder is a swappable model slot that is safe for concurrent use.
// An empty Holder reports ErrModelUnavailable.
type Holder struct {
	current atomic.Pointer[modelBox]
}

type modelBox struct {
	model Model
}

// NewHolder returns a Holder containing m, or an empty one when m is nil
func NewHolder(m Model) *Holder {
	h := &Holder{}
	if m != nil {
		h.Set(m)
	}
	return h
}

// Set replaces the held model
func (h *Holder) Set(m Model) {
	h.current.Store(&modelBox{model: m})
}

// Clear unloads the held model
func (h *Holder) Clear() {
	h.current.Store(nil)
}

// Load fetches a model through l and holds it
func (h *Holder) Load(ctx context.Context, l Loader) error {
	m, err := l.Load(ctx)
	if err != nil {
		return err
	}
	h.Set(m)
	return nil
}

// Loaded reports whether a model is held
func (h *Holder) Loaded() bool {
	return h.current.Load() != nil
}

func (h *Holder) get() (Model, error) {
	box := h.current.Load()
	if box == nil {
		return nil, errs.ErrModelUnavailable
	}
	return box.model, nil
}

// ShapeOf returns the held model's input shape
func (h *Holder) ShapeOf() (feature.Shape, error) {
	m, err := h.get()
	if err != nil {
		return feature.Shape{}, err
	}
	return m.Shape(), nil
}

// Infer runs the held model
func (h *Holder) Infer(ctx context.Context, features []float64) (float64, error) {
	m, err := h.get()
	if err != nil {
		return 0, err
	}
	return m.Infer(ctx, features)
}
