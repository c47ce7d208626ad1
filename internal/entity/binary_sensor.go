package entity

import "github.com/muurk/multicontroller/internal/params"

// IsBinarySensor reports whether a parameter becomes a read-only boolean
func IsBinarySensor(p *params.Parameter) bool {
	return !Excluded(p.Name) && p.DataType == params.DataTypeBool && !p.Writable()
}

// BinarySensor exposes one read-only boolean parameter
type BinarySensor struct {
	Base
}

// NewBinarySensor creates a binary sensor for one read-only boolean parameter
func NewBinarySensor(entryID, nodeID, nodeName, param string, coord Coordinator) *BinarySensor {
	return &BinarySensor{Base: newBase(entryID, nodeID, nodeName, param, coord)}
}

// Platform returns PlatformBinarySensor
func (b *BinarySensor) Platform() Platform { return PlatformBinarySensor }

// IsOn returns nil when the node reported no value
func (b *BinarySensor) IsOn() *bool {
	return tristate(b.param())
}

// State returns the binary sensor view
func (b *BinarySensor) State() State {
	s := b.state(PlatformBinarySensor, b.UniqueID(), b.Name())
	if on := b.IsOn(); on != nil {
		s.Value = *on
	}
	return s
}
