package params

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DataType is the value type a parameter declares in its metadata
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeInt
	DataTypeFloat
	DataTypeString
	DataTypeObject
	DataTypeArray
)

// ParseDataType maps a Rainmaker data_type tag to a DataType. Matching is
// case-insensitive; "number" is treated as a float.
func ParseDataType(tag string) DataType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "bool", "boolean":
		return DataTypeBool
	case "int", "integer":
		return DataTypeInt
	case "float", "number", "double":
		return DataTypeFloat
	case "string":
		return DataTypeString
	case "object":
		return DataTypeObject
	case "array":
		return DataTypeArray
	default:
		return DataTypeUnknown
	}
}

// String returns the canonical tag for the data type
func (d DataType) String() string {
	switch d {
	case DataTypeBool:
		return "bool"
	case DataTypeInt:
		return "int"
	case DataTypeFloat:
		return "float"
	case DataTypeString:
		return "string"
	case DataTypeObject:
		return "object"
	case DataTypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether values of this type are numbers
func (d DataType) IsNumeric() bool {
	return d == DataTypeInt || d == DataTypeFloat
}

// Property tags used by Rainmaker parameter metadata
const (
	PropertyRead       = "read"
	PropertyWrite      = "write"
	PropertyTimeSeries = "time_series"
)

// Properties is the set of capability tags on a parameter
type Properties map[string]struct{}

// NewProperties builds a property set from tags
func NewProperties(tags ...string) Properties {
	p := make(Properties, len(tags))
	for _, tag := range tags {
		p[tag] = struct{}{}
	}
	return p
}

// Has reports whether the tag is present
func (p Properties) Has(tag string) bool {
	_, ok := p[tag]
	return ok
}

// Writable reports whether the parameter can be set remotely
func (p Properties) Writable() bool { return p.Has(PropertyWrite) }

// Readable reports whether the parameter is reported by the node
func (p Properties) Readable() bool { return p.Has(PropertyRead) }

// List returns the tags in sorted order
func (p Properties) List() []string {
	tags := make([]string, 0, len(p))
	for tag := range p {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Bounds is the numeric range of a parameter. A zero Step means no step.
type Bounds struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

// Contains reports whether v lies within [Min, Max]
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Levels returns the number of integer levels between Min and Max inclusive
func (b Bounds) Levels() int {
	return int(b.Max-b.Min) + 1
}

// Parameter is one named value on a node with its static metadata merged in.
// A nil Value means the node reported no value for it.
type Parameter struct {
	Name       string
	Value      any
	DataType   DataType
	Tag        string
	Type       string
	UIType     string
	Properties Properties
	Bounds     *Bounds
}

// Writable reports whether the parameter has the write property
func (p *Parameter) Writable() bool {
	return p != nil && p.Properties.Writable()
}

// HasValue reports whether a value was reported
func (p *Parameter) HasValue() bool {
	return p != nil && p.Value != nil
}

// Float returns the value as a float64
func (p *Parameter) Float() (float64, bool) {
	if !p.HasValue() {
		return 0, false
	}
	return toFloat(p.Value)
}

// Int returns the value truncated to an int
func (p *Parameter) Int() (int, bool) {
	f, ok := p.Float()
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns the truthiness of the value. ok is false when no value was
// reported, so callers can tell "off" from "unknown".
func (p *Parameter) Bool() (value bool, ok bool) {
	if !p.HasValue() {
		return false, false
	}
	return Truthy(p.Value), true
}

// String returns the value formatted for display; empty when absent
func (p *Parameter) String() string {
	if !p.HasValue() {
		return ""
	}
	switch v := p.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Truthy applies loose truthiness: false, 0, "", and empty collections are false
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ParameterMap holds one node's parameters keyed by name
type ParameterMap map[string]*Parameter

// Get returns the parameter with exactly this name, or nil
func (m ParameterMap) Get(name string) *Parameter {
	return m[name]
}

// GetFold returns the parameter whose name matches case-insensitively, or nil.
// An exact match wins over a case-folded one.
func (m ParameterMap) GetFold(name string) *Parameter {
	if p, ok := m[name]; ok {
		return p
	}
	for key, p := range m {
		if strings.EqualFold(key, name) {
			return p
		}
	}
	return nil
}

// Has reports whether a parameter with exactly this name exists
func (m ParameterMap) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Names returns the parameter names in sorted order
func (m ParameterMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
