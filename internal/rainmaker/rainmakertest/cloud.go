// Package rainmakertest provides an in-process RainMaker cloud for tests.
package rainmakertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/muurk/multicontroller/internal/rainmaker"
)

// Meta describes one parameter of a fake node
type Meta struct {
	Name       string         `json:"name"`
	DataType   string         `json:"data_type,omitempty"`
	Properties []string       `json:"properties,omitempty"`
	Bounds     map[string]any `json:"bounds,omitempty"`
}

type node struct {
	meta   []Meta
	values map[string]any
}

// Cloud serves login, node listing and parameter writes from memory.
// Writes update the stored values, so a following listing reflects them.
type Cloud struct {
	*httptest.Server

	Username string
	Password string
	Token    string

	mu         sync.Mutex
	nodes      map[string]*node
	writes     []rainmaker.NodeParams
	failParams map[string]bool
	listStatus int
	logins     int
}

// New starts a cloud that accepts user/pass and closes it when t ends
func New(t testing.TB) *Cloud {
	t.Helper()
	c := &Cloud{
		Username:   "user",
		Password:   "pass",
		Token:      "token-1",
		nodes:      make(map[string]*node),
		failParams: make(map[string]bool),
	}
	c.Server = httptest.NewServer(c)
	t.Cleanup(c.Server.Close)
	return c
}

// AddNode registers a node with parameter metadata and initial values
func (c *Cloud) AddNode(id string, meta []Meta, values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if values == nil {
		values = make(map[string]any)
	}
	c.nodes[id] = &node{meta: meta, values: values}
}

// FailParam makes every write of param report a failure status
func (c *Cloud) FailParam(param string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failParams[param] = true
}

// SetListStatus forces the node listing to answer with status; 0 restores it
func (c *Cloud) SetListStatus(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listStatus = status
}

// Writes returns every received parameter update
func (c *Cloud) Writes() []rainmaker.NodeParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rainmaker.NodeParams(nil), c.writes...)
}

// Value returns the stored value of one parameter
func (c *Cloud) Value(nodeID, param string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[nodeID]; ok {
		return n.values[param]
	}
	return nil
}

// Logins returns the number of successful logins
func (c *Cloud) Logins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins
}

func (c *Cloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/login2":
		c.login(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/user/nodes":
		c.list(w, r)
	case r.Method == http.MethodPut && r.URL.Path == "/v1/user/nodes/params":
		c.set(w, r)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (c *Cloud) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"user_name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failure", "description": "bad request"})
		return
	}
	if req.UserName != c.Username || req.Password != c.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "failure", "description": "Incorrect user name or password"})
		return
	}

	c.mu.Lock()
	c.logins++
	c.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "accesstoken": c.Token})
}

func (c *Cloud) list(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != c.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "failure", "description": "Unauthorized"})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listStatus != 0 {
		writeJSON(w, c.listStatus, map[string]string{"status": "failure"})
		return
	}

	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	details := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		n := c.nodes[id]
		values := make(map[string]any, len(n.values))
		for k, v := range n.values {
			values[k] = v
		}
		details = append(details, map[string]any{
			"id":     id,
			"config": map[string]any{"devices": []any{map[string]any{"name": "Multicontroller", "params": n.meta}}},
			"params": map[string]any{rainmaker.DefaultService: values},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"node_details": details, "total": len(details)})
}

func (c *Cloud) set(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != c.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "failure", "description": "Unauthorized"})
		return
	}

	var updates []rainmaker.NodeParams
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failure", "description": "bad request"})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]rainmaker.NodeStatus, 0, len(updates))
	for _, u := range updates {
		c.writes = append(c.writes, u)
		status := rainmaker.NodeStatus{NodeID: u.NodeID, Status: rainmaker.StatusSuccess}

		n, ok := c.nodes[u.NodeID]
		if !ok {
			status.Status, status.Description = "failure", "node not found"
			statuses = append(statuses, status)
			continue
		}
		for param, value := range u.Payload[rainmaker.DefaultService] {
			if c.failParams[param] {
				status.Status, status.Description = "failure", "rejected by node"
				continue
			}
			n.values[param] = value
		}
		statuses = append(statuses, status)
	}
	writeJSON(w, http.StatusOK, statuses)
}

// AddMulticontroller registers a node shaped like a Zehnder multicontroller:
// a climate node with humidity, a fan and a radiant switch.
func (c *Cloud) AddMulticontroller(id, name string) {
	rw := []string{"read", "write"}
	ro := []string{"read"}
	c.AddNode(id, []Meta{
		{Name: "Name", DataType: "string", Properties: rw},
		{Name: "temp", DataType: "float", Properties: ro},
		{Name: "humidity", DataType: "float", Properties: ro},
		{Name: "temp_setpoint", DataType: "float", Properties: rw, Bounds: map[string]any{"min": 10, "max": 30, "step": 0.5}},
		{Name: "season", DataType: "int", Properties: rw, Bounds: map[string]any{"min": 1, "max": 2, "step": 1}},
		{Name: "radiant_enabled", DataType: "bool", Properties: rw},
		{Name: "fan_speed", DataType: "int", Properties: rw, Bounds: map[string]any{"min": 0, "max": 3, "step": 1}},
		{Name: "is_active", DataType: "bool", Properties: ro},
		{Name: "schedule_1", DataType: "string", Properties: rw},
	}, map[string]any{
		"Name":            name,
		"temp":            21.5,
		"humidity":        45.0,
		"temp_setpoint":   22.0,
		"season":          1,
		"radiant_enabled": true,
		"fan_speed":       1,
		"is_active":       true,
		"schedule_1":      "06:00-22:00",
	})
}
