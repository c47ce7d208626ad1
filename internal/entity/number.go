package entity

import (
	"context"
	"fmt"

	"github.com/muurk/multicontroller/internal/params"
)

// Default number range when the parameter declares no bounds
const (
	DefaultNumberMin  = 0
	DefaultNumberMax  = 100
	DefaultNumberStep = 1
)

// IsNumber reports whether a parameter becomes a writable number
func IsNumber(p *params.Parameter) bool {
	return !Excluded(p.Name) && p.Writable() && p.DataType.IsNumeric()
}

// Number exposes one writable numeric parameter
type Number struct {
	Base
	bounds params.Bounds
}

// NewNumber creates a number entity. A nil bounds uses the defaults; a zero
// step is replaced by the default step.
func NewNumber(entryID, nodeID, nodeName, param string, bounds *params.Bounds, coord Coordinator) *Number {
	n := &Number{
		Base:   newBase(entryID, nodeID, nodeName, param, coord),
		bounds: params.Bounds{Min: DefaultNumberMin, Max: DefaultNumberMax, Step: DefaultNumberStep},
	}
	if bounds != nil {
		n.bounds = *bounds
		if n.bounds.Step == 0 {
			n.bounds.Step = DefaultNumberStep
		}
	}
	return n
}

// Platform returns PlatformNumber
func (n *Number) Platform() Platform { return PlatformNumber }

// Min, Max and Step describe the accepted range
func (n *Number) Min() float64  { return n.bounds.Min }
func (n *Number) Max() float64  { return n.bounds.Max }
func (n *Number) Step() float64 { return n.bounds.Step }

// NativeValue returns the current value
func (n *Number) NativeValue() (float64, bool) {
	return n.param().Float()
}

// SetNativeValue writes value after checking it against the bounds
func (n *Number) SetNativeValue(ctx context.Context, value float64) error {
	if !n.bounds.Contains(value) {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfBounds, value, n.bounds.Min, n.bounds.Max)
	}

	_ = n.write(ctx, n.Param, value)
	n.coord.RequestRefresh(ctx)
	return nil
}

// State returns the number view with min, max and step attributes
func (n *Number) State() State {
	s := n.state(PlatformNumber, n.UniqueID(), n.Name())
	if v, ok := n.NativeValue(); ok {
		s.Value = v
	}
	s.Attributes = map[string]any{
		"min":  n.bounds.Min,
		"max":  n.bounds.Max,
		"step": n.bounds.Step,
	}
	return s
}
