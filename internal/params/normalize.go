package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrEmptySnapshot means no node survived normalization
var ErrEmptySnapshot = errors.New("no valid nodes found in API response")

// NormalizationError describes why one node entry could not be shaped
type NormalizationError struct {
	Index  int    // Position of the entry in node_details
	NodeID string // Node id, when it could be read
	Reason string
	Err    error
}

// Error implements the error interface
func (e *NormalizationError) Error() string {
	id := e.NodeID
	if id == "" {
		id = "unknown"
	}
	if e.Err != nil {
		return fmt.Sprintf("node %s (entry %d): %s: %v", id, e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("node %s (entry %d): %s", id, e.Index, e.Reason)
}

// Unwrap returns the underlying decode error, if any
func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// NodeResult is the outcome of normalizing one node entry. Exactly one of
// Params and Err is set.
type NodeResult struct {
	NodeID string
	Params ParameterMap
	Err    error
}

// OK reports whether the node normalized cleanly
func (r NodeResult) OK() bool {
	return r.Err == nil
}

type rawNode struct {
	ID     *string                     `json:"id"`
	Config *rawConfig                  `json:"config"`
	Params map[string]*json.RawMessage `json:"params"`
}

type rawConfig struct {
	Devices []rawDevice `json:"devices"`
}

type rawDevice struct {
	Name   string         `json:"name"`
	Params []rawParamMeta `json:"params"`
}

type rawParamMeta struct {
	Name       *string  `json:"name"`
	DataType   string   `json:"data_type"`
	Type       string   `json:"type"`
	UIType     string   `json:"ui_type"`
	Properties []string `json:"properties"`
	Bounds     *Bounds  `json:"bounds"`
}

// NormalizeNode merges one raw node entry's parameter metadata with its
// current values under service. Every metadata entry yields exactly one
// Parameter; a missing value is legal and leaves Value nil.
func NormalizeNode(index int, raw json.RawMessage, service string) NodeResult {
	fail := func(id, reason string, err error) NodeResult {
		return NodeResult{NodeID: id, Err: &NormalizationError{Index: index, NodeID: id, Reason: reason, Err: err}}
	}

	var node rawNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return fail("", "malformed node entry", err)
	}

	if node.ID == nil || *node.ID == "" {
		return fail("", "missing id", nil)
	}
	id := *node.ID

	if node.Config == nil {
		return fail(id, "missing config", nil)
	}
	if len(node.Config.Devices) == 0 {
		return fail(id, "config has no devices", nil)
	}
	meta := node.Config.Devices[0].Params
	if meta == nil {
		return fail(id, "device has no params list", nil)
	}

	if node.Params == nil {
		return fail(id, "missing params", nil)
	}
	rawValues, ok := node.Params[service]
	if !ok || rawValues == nil {
		return fail(id, fmt.Sprintf("missing params.%s", service), nil)
	}
	var values map[string]any
	if err := json.Unmarshal(*rawValues, &values); err != nil || values == nil {
		return fail(id, fmt.Sprintf("params.%s is not an object", service), err)
	}

	out := make(ParameterMap, len(meta))
	for i, m := range meta {
		if m.Name == nil {
			return fail(id, fmt.Sprintf("param metadata %d has no name", i), nil)
		}
		out[*m.Name] = &Parameter{
			Name:       *m.Name,
			Value:      values[*m.Name],
			DataType:   ParseDataType(m.DataType),
			Tag:        m.DataType,
			Type:       m.Type,
			UIType:     m.UIType,
			Properties: NewProperties(m.Properties...),
			Bounds:     m.Bounds,
		}
	}

	return NodeResult{NodeID: id, Params: out}
}

// Normalize shapes every entry independently. One bad entry never affects
// the others.
func Normalize(nodes []json.RawMessage, service string) []NodeResult {
	results := make([]NodeResult, 0, len(nodes))
	for i, raw := range nodes {
		results = append(results, NormalizeNode(i, raw, service))
	}
	return results
}

// Fold collects successful results into a Snapshot. Failed nodes are
// returned as skipped. If nothing succeeded the whole cycle fails with
// ErrEmptySnapshot.
func Fold(results []NodeResult) (*Snapshot, []error, error) {
	nodes := make(map[string]ParameterMap, len(results))
	var skipped []error

	for _, r := range results {
		if !r.OK() {
			skipped = append(skipped, r.Err)
			continue
		}
		nodes[r.NodeID] = r.Params
	}

	if len(nodes) == 0 {
		return nil, skipped, ErrEmptySnapshot
	}
	return NewSnapshot(nodes), skipped, nil
}

// Snapshot is the full set of node parameters from one refresh. It is never
// modified after construction.
type Snapshot struct {
	nodes map[string]ParameterMap
	ids   []string
}

// NewSnapshot wraps a node map. The caller must not modify nodes afterwards.
func NewSnapshot(nodes map[string]ParameterMap) *Snapshot {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Snapshot{nodes: nodes, ids: ids}
}

// Node returns one node's parameters, or nil if the node is absent
func (s *Snapshot) Node(id string) ParameterMap {
	if s == nil {
		return nil
	}
	return s.nodes[id]
}

// Param returns one parameter of one node, or nil
func (s *Snapshot) Param(nodeID, name string) *Parameter {
	return s.Node(nodeID).Get(name)
}

// NodeIDs returns the node ids in sorted order
func (s *Snapshot) NodeIDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// Len returns the number of nodes
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nodes)
}
