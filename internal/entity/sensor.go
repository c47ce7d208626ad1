package entity

import (
	"strings"

	"github.com/muurk/multicontroller/internal/params"
)

// Sensor device classes
const (
	DeviceClassTemperature = "temperature"
	DeviceClassHumidity    = "humidity"
)

// IsSensor reports whether a parameter becomes a read-only sensor
func IsSensor(p *params.Parameter) bool {
	return !Excluded(p.Name) && !p.Writable() && p.DataType != params.DataTypeBool
}

// Sensor exposes one read-only, non-boolean parameter
type Sensor struct {
	Base
	unit        string
	deviceClass string
}

// NewSensor creates a sensor. Unit and device class are inferred from the
// parameter name.
func NewSensor(entryID, nodeID, nodeName, param string, coord Coordinator) *Sensor {
	s := &Sensor{Base: newBase(entryID, nodeID, nodeName, param, coord)}

	lower := strings.ToLower(param)
	switch {
	case strings.Contains(lower, "temp"):
		s.unit = TemperatureUnit
		s.deviceClass = DeviceClassTemperature
	case strings.Contains(lower, "humidity"):
		s.unit = "%"
		s.deviceClass = DeviceClassHumidity
	}
	return s
}

// Platform returns PlatformSensor
func (s *Sensor) Platform() Platform { return PlatformSensor }

// NativeValue returns the reported value unchanged, or nil
func (s *Sensor) NativeValue() any {
	p := s.param()
	if p == nil {
		return nil
	}
	return p.Value
}

// Unit returns the unit of measurement, or ""
func (s *Sensor) Unit() string { return s.unit }

// DeviceClass returns the device class, or ""
func (s *Sensor) DeviceClass() string { return s.deviceClass }

// State returns the sensor view with unit and device class
func (s *Sensor) State() State {
	st := s.state(PlatformSensor, s.UniqueID(), s.Name())
	st.Value = s.NativeValue()
	st.Unit = s.unit
	st.DeviceClass = s.deviceClass
	return st
}
