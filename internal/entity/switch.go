package entity

import (
	"context"

	"github.com/muurk/multicontroller/internal/params"
)

// IsSwitch reports whether a parameter becomes a writable boolean
func IsSwitch(p *params.Parameter) bool {
	return !Excluded(p.Name) && p.DataType == params.DataTypeBool && p.Writable()
}

// Switch exposes one writable boolean parameter
type Switch struct {
	Base
}

// NewSwitch creates a switch for one writable boolean parameter
func NewSwitch(entryID, nodeID, nodeName, param string, coord Coordinator) *Switch {
	return &Switch{Base: newBase(entryID, nodeID, nodeName, param, coord)}
}

// Platform returns PlatformSwitch
func (s *Switch) Platform() Platform { return PlatformSwitch }

// IsOn returns nil when the node reported no value
func (s *Switch) IsOn() *bool {
	return tristate(s.param())
}

// TurnOn writes true. A refresh is requested whether or not the write succeeded.
func (s *Switch) TurnOn(ctx context.Context) {
	s.set(ctx, true)
}

// TurnOff writes false. A refresh is requested whether or not the write succeeded.
func (s *Switch) TurnOff(ctx context.Context) {
	s.set(ctx, false)
}

func (s *Switch) set(ctx context.Context, on bool) {
	defer s.coord.RequestRefresh(ctx)
	_ = s.write(ctx, s.Param, on)
}

// State returns the switch view; Value is unset when unknown
func (s *Switch) State() State {
	st := s.state(PlatformSwitch, s.UniqueID(), s.Name())
	if on := s.IsOn(); on != nil {
		st.Value = *on
	}
	return st
}
