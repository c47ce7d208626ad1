package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/params"
)

const (
	// Domain identifies this integration in device identifiers
	Domain = "zehnder_multicontroller"

	// Manufacturer is reported on every device
	Manufacturer = "ESP RainMaker"

	// nameParam holds the human readable node name
	nameParam = "Name"
)

var (
	// ErrNotFound is returned when no entity has the requested unique id
	ErrNotFound = errors.New("entity not found")

	// ErrUnknownFanMode is returned for a fan label the climate does not offer
	ErrUnknownFanMode = errors.New("unknown fan mode")

	// ErrUnsupportedHVACMode is returned for HVAC modes other than heat, cool and off
	ErrUnsupportedHVACMode = errors.New("unsupported hvac mode")

	// ErrOutOfBounds is returned when a number value lies outside its bounds
	ErrOutOfBounds = errors.New("value out of bounds")
)

// Platform names an entity kind
type Platform string

const (
	PlatformClimate      Platform = "climate"
	PlatformSensor       Platform = "sensor"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformSwitch       Platform = "switch"
	PlatformNumber       Platform = "number"
)

// Platforms lists every platform in setup order
var Platforms = []Platform{
	PlatformClimate,
	PlatformSensor,
	PlatformBinarySensor,
	PlatformSwitch,
	PlatformNumber,
}

// Coordinator is what entities need from the poll coordinator.
// *coordinator.Coordinator implements it.
type Coordinator interface {
	Snapshot() *params.Snapshot
	LastUpdateSuccess() bool
	RequestRefresh(ctx context.Context)
	API() coordinator.Source
}

// Entity is the common surface of every platform entity
type Entity interface {
	Platform() Platform
	UniqueID() string
	Name() string
	DeviceInfo() DeviceInfo
	Available() bool
	State() State
}

// DeviceInfo groups entities under one physical node
type DeviceInfo struct {
	Identifiers  [][2]string `json:"identifiers"`
	Name         string      `json:"name"`
	Manufacturer string      `json:"manufacturer"`
}

// State is a serializable view of an entity at one point in time
type State struct {
	UniqueID    string         `json:"unique_id"`
	Platform    Platform       `json:"platform"`
	Name        string         `json:"name"`
	NodeID      string         `json:"node_id"`
	Param       string         `json:"param,omitempty"`
	Available   bool           `json:"available"`
	Value       any            `json:"value"`
	Unit        string         `json:"unit,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Excluded reports whether a parameter never becomes its own entity
func Excluded(name string) bool {
	return name == nameParam || name == "config" || strings.Contains(strings.ToLower(name), "schedule")
}

// NodeName returns the node's Name value, or the node id when it has none
func NodeName(m params.ParameterMap, nodeID string) string {
	if s := m.Get(nameParam).String(); s != "" {
		return s
	}
	return nodeID
}

// UniqueID builds the stable id for a parameter entity
func UniqueID(entryID, nodeID, param string) string {
	return fmt.Sprintf("%s_%s_%s", entryID, nodeID, param)
}

// Base holds what every entity shares. Values are always read from the
// coordinator's current snapshot.
type Base struct {
	EntryID  string
	NodeID   string
	NodeName string
	Param    string

	coord Coordinator
}

func newBase(entryID, nodeID, nodeName, param string, coord Coordinator) Base {
	return Base{
		EntryID:  entryID,
		NodeID:   nodeID,
		NodeName: nodeName,
		Param:    param,
		coord:    coord,
	}
}

// UniqueID returns {entry}_{node}_{param}
func (b *Base) UniqueID() string {
	return UniqueID(b.EntryID, b.NodeID, b.Param)
}

// Name returns "{node name} {param}"
func (b *Base) Name() string {
	return b.NodeName + " " + b.Param
}

// DeviceInfo returns the node the entity belongs to
func (b *Base) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Identifiers:  [][2]string{{Domain, b.NodeID}},
		Name:         b.NodeName,
		Manufacturer: Manufacturer,
	}
}

// Available reports whether the last refresh succeeded and still has the node
func (b *Base) Available() bool {
	return b.coord.LastUpdateSuccess() && b.node() != nil
}

func (b *Base) node() params.ParameterMap {
	return b.coord.Snapshot().Node(b.NodeID)
}

func (b *Base) param() *params.Parameter {
	return b.node().Get(b.Param)
}

// write sends one parameter to the node. Errors are logged and returned so
// multi-step writes can stop early; callers do not surface them.
func (b *Base) write(ctx context.Context, name string, value any) error {
	err := b.coord.API().SetParam(ctx, b.NodeID, name, value)
	logging.LogWrite(b.NodeID, name, value, err)
	return err
}

func (b *Base) state(p Platform, uid, name string) State {
	return State{
		UniqueID:  uid,
		Platform:  p,
		Name:      name,
		NodeID:    b.NodeID,
		Param:     b.Param,
		Available: b.Available(),
	}
}

func tristate(p *params.Parameter) *bool {
	v, ok := p.Bool()
	if !ok {
		return nil
	}
	return &v
}
