package entity

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/params"
)

// Climate parameter names
const (
	ParamTemp           = "temp"
	ParamTempSetpoint   = "temp_setpoint"
	ParamSeason         = "season"
	ParamRadiantEnabled = "radiant_enabled"
	ParamFanSpeed       = "fan_speed"
)

const (
	seasonHeat = 1
	seasonCool = 2

	// TemperatureUnit is the unit of every temperature the node reports
	TemperatureUnit = "°C"
)

// HVACMode is the operating mode of a climate entity. The empty mode means
// the node reported a season that maps to nothing.
type HVACMode string

const (
	HVACModeHeat    HVACMode = "heat"
	HVACModeCool    HVACMode = "cool"
	HVACModeOff     HVACMode = "off"
	HVACModeUnknown HVACMode = ""
)

// HVACModes is the fixed list of modes a climate entity offers
var HVACModes = []HVACMode{HVACModeHeat, HVACModeCool, HVACModeOff}

// ClimateFeature is a bit set of optional climate capabilities
type ClimateFeature int

const (
	FeatureTargetTemperature ClimateFeature = 1 << iota
	FeatureFanMode
)

// Has reports whether f includes flag
func (f ClimateFeature) Has(flag ClimateFeature) bool {
	return f&flag != 0
}

// DefaultFanModes are used when the fan has exactly four levels
var DefaultFanModes = []string{"Away", "Low", "Medium", "High"}

// Climate is the thermostat view of a node that reports a temperature
type Climate struct {
	Base
	fanModes []string
}

// NewClimate creates the climate entity for a node. Fan labels are fixed
// from the snapshot at construction time.
func NewClimate(entryID, nodeID, nodeName string, coord Coordinator) *Climate {
	c := &Climate{Base: newBase(entryID, nodeID, nodeName, "climate", coord)}
	c.fanModes = fanLabels(c.node().Get(ParamFanSpeed))

	logging.Debug("Creating climate entity",
		zap.String("node_id", nodeID),
		zap.Strings("fan_modes", c.fanModes),
	)
	return c
}

// HasClimate reports whether a node qualifies for a climate entity
func HasClimate(m params.ParameterMap) bool {
	return m.GetFold(ParamTemp) != nil
}

func fanLabels(fan *params.Parameter) []string {
	if fan == nil {
		return DefaultFanModes
	}

	lo, hi := 0.0, 3.0
	if fan.Bounds != nil {
		lo, hi = fan.Bounds.Min, fan.Bounds.Max
	}

	levels := params.Bounds{Min: lo, Max: hi}.Levels()
	if levels == len(DefaultFanModes) {
		return DefaultFanModes
	}

	labels := []string{}
	for i := int(lo); i <= int(hi); i++ {
		labels = append(labels, strconv.Itoa(i))
	}
	return labels
}

// Platform returns PlatformClimate
func (c *Climate) Platform() Platform { return PlatformClimate }

// Name returns the node name
func (c *Climate) Name() string { return c.NodeName }

// CurrentTemperature returns the measured temperature
func (c *Climate) CurrentTemperature() (float64, bool) {
	return c.node().GetFold(ParamTemp).Float()
}

// TargetTemperature returns the configured setpoint
func (c *Climate) TargetTemperature() (float64, bool) {
	return c.node().GetFold(ParamTempSetpoint).Float()
}

// HVACMode derives the mode from radiant_enabled and season
func (c *Climate) HVACMode() HVACMode {
	node := c.node()

	if enabled, _ := node.GetFold(ParamRadiantEnabled).Bool(); !enabled {
		return HVACModeOff
	}

	season, ok := node.GetFold(ParamSeason).Float()
	if !ok {
		return HVACModeUnknown
	}
	switch season {
	case seasonHeat:
		return HVACModeHeat
	case seasonCool:
		return HVACModeCool
	default:
		return HVACModeUnknown
	}
}

// HVACModes returns the modes this entity accepts
func (c *Climate) HVACModes() []HVACMode {
	return HVACModes
}

// SupportedFeatures is computed from the current snapshot, so it follows
// the node's write properties as they change between refreshes.
func (c *Climate) SupportedFeatures() ClimateFeature {
	node := c.node()

	var features ClimateFeature
	if node.Get(ParamTempSetpoint).Writable() {
		features |= FeatureTargetTemperature
	}
	if node.Get(ParamFanSpeed).Writable() {
		features |= FeatureFanMode
	}
	return features
}

// FanModes returns the fan labels
func (c *Climate) FanModes() []string {
	return c.fanModes
}

// FanMode returns the label for the current fan level, or "" when unknown
func (c *Climate) FanMode() string {
	level, ok := c.node().Get(ParamFanSpeed).Int()
	if !ok || level < 0 || level >= len(c.fanModes) {
		return ""
	}
	return c.fanModes[level]
}

// TemperatureUnit returns the temperature unit
func (c *Climate) TemperatureUnit() string {
	return TemperatureUnit
}

// SetTemperature writes the setpoint
func (c *Climate) SetTemperature(ctx context.Context, temperature float64) error {
	_ = c.write(ctx, ParamTempSetpoint, temperature)
	c.coord.RequestRefresh(ctx)
	return nil
}

// SetFanMode writes the level for a fan label
func (c *Climate) SetFanMode(ctx context.Context, mode string) error {
	level := slices.Index(c.fanModes, mode)
	if level < 0 {
		logging.Warn("Unknown fan mode", zap.String("node_id", c.NodeID), zap.String("fan_mode", mode))
		return fmt.Errorf("%w: %q", ErrUnknownFanMode, mode)
	}

	_ = c.write(ctx, ParamFanSpeed, level)
	c.coord.RequestRefresh(ctx)
	return nil
}

type paramWrite struct {
	name  string
	value any
}

// SetHVACMode writes season then radiant_enabled for heat and cool, or only
// radiant_enabled for off. A failed step stops the sequence; earlier steps
// are not undone.
func (c *Climate) SetHVACMode(ctx context.Context, mode HVACMode) error {
	var steps []paramWrite
	switch mode {
	case HVACModeOff:
		steps = []paramWrite{{ParamRadiantEnabled, false}}
	case HVACModeHeat:
		steps = []paramWrite{{ParamSeason, seasonHeat}, {ParamRadiantEnabled, true}}
	case HVACModeCool:
		steps = []paramWrite{{ParamSeason, seasonCool}, {ParamRadiantEnabled, true}}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedHVACMode, mode)
	}

	for i, step := range steps {
		if err := c.write(ctx, step.name, step.value); err != nil {
			logging.Error("Failed to set hvac mode",
				zap.String("node_id", c.NodeID),
				zap.String("hvac_mode", string(mode)),
				zap.Int("completed_steps", i),
				zap.Error(err),
			)
			break
		}
	}

	c.coord.RequestRefresh(ctx)
	return nil
}

// State returns the climate view
func (c *Climate) State() State {
	s := c.state(PlatformClimate, c.UniqueID(), c.Name())
	s.Param = ""
	s.Value = string(c.HVACMode())
	s.Unit = TemperatureUnit

	attrs := map[string]any{
		"hvac_modes":          c.HVACModes(),
		"fan_modes":           c.FanModes(),
		"supported_features":  int(c.SupportedFeatures()),
		"current_temperature": nil,
		"target_temperature":  nil,
		"fan_mode":            nil,
	}
	if t, ok := c.CurrentTemperature(); ok {
		attrs["current_temperature"] = t
	}
	if t, ok := c.TargetTemperature(); ok {
		attrs["target_temperature"] = t
	}
	if m := c.FanMode(); m != "" {
		attrs["fan_mode"] = m
	}
	s.Attributes = attrs
	return s
}
