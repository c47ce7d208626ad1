package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muurk/multicontroller/internal/config"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/integration"
	"github.com/muurk/multicontroller/internal/rainmaker/rainmakertest"
)

type fixture struct {
	cloud  *rainmakertest.Cloud
	rt     *integration.Runtime
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	cloud := rainmakertest.New(t)
	cloud.AddMulticontroller("n1", "Living Room")

	entry := &config.Entry{Host: cloud.URL, Username: cloud.Username, IntegrationVersion: integration.Version}
	rt, err := integration.Setup(context.Background(), "e1", entry, cloud.Password, integration.Options{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	t.Cleanup(rt.Unload)

	s := New(cfg, rt.Coordinator, rt.Entities)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &fixture{cloud: cloud, rt: rt, server: s, http: ts}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.http.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Config{})

	resp, body := f.do(t, http.MethodGet, "/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" || body["last_update_success"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestListNodes(t *testing.T) {
	f := newFixture(t, Config{})

	resp, body := f.do(t, http.MethodGet, "/api/v1/nodes", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	resp, body = f.do(t, http.MethodGet, "/api/v1/nodes/n1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["name"] != "Living Room" {
		t.Errorf("name = %v, want Living Room", body["name"])
	}
	if ps, _ := body["params"].([]any); len(ps) != 9 {
		t.Errorf("len(params) = %d, want 9", len(ps))
	}

	resp, _ = f.do(t, http.MethodGet, "/api/v1/nodes/missing", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing node status = %d, want 404", resp.StatusCode)
	}
}

func TestListEntities(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		query string
		want  float64
	}{
		{"", 8},
		{"?platform=climate", 1},
		{"?platform=sensor", 2},
		{"?platform=binary_sensor", 1},
		{"?platform=switch", 1},
		{"?platform=number", 3},
		{"?platform=light", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, body := f.do(t, http.MethodGet, "/api/v1/entities"+tt.query, nil, "")
			if body["count"] != tt.want {
				t.Errorf("count = %v, want %v", body["count"], tt.want)
			}
		})
	}
}

func TestGetEntity(t *testing.T) {
	f := newFixture(t, Config{})

	resp, body := f.do(t, http.MethodGet, "/api/v1/entities/e1_n1_temp", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["value"] != 21.5 || body["device_class"] != "temperature" {
		t.Errorf("body = %v", body)
	}

	resp, _ = f.do(t, http.MethodGet, "/api/v1/entities/nope", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClimateCommands(t *testing.T) {
	f := newFixture(t, Config{})
	const base = "/api/v1/climate/e1_n1_climate"

	resp, body := f.do(t, http.MethodPost, base+"/hvac_mode", map[string]any{"hvac_mode": "cool"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hvac_mode status = %d, want 200 (%v)", resp.StatusCode, body)
	}
	if body["value"] != string(entity.HVACModeCool) {
		t.Errorf("hvac mode = %v, want cool", body["value"])
	}
	if got := f.cloud.Value("n1", "season"); got != float64(2) {
		t.Errorf("season = %v, want 2", got)
	}

	resp, _ = f.do(t, http.MethodPost, base+"/temperature", map[string]any{"temperature": 19.5}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("temperature status = %d, want 200", resp.StatusCode)
	}
	if got := f.cloud.Value("n1", "temp_setpoint"); got != 19.5 {
		t.Errorf("temp_setpoint = %v, want 19.5", got)
	}

	resp, body = f.do(t, http.MethodPost, base+"/fan_mode", map[string]any{"fan_mode": "High"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fan_mode status = %d, want 200", resp.StatusCode)
	}
	if attrs, _ := body["attributes"].(map[string]any); attrs["fan_mode"] != "High" {
		t.Errorf("fan_mode = %v, want High", attrs["fan_mode"])
	}
}

func TestClimateCommands_Rejected(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown fan mode", "/api/v1/climate/e1_n1_climate/fan_mode", map[string]any{"fan_mode": "Turbo"}, http.StatusBadRequest},
		{"unsupported hvac mode", "/api/v1/climate/e1_n1_climate/hvac_mode", map[string]any{"hvac_mode": "auto"}, http.StatusBadRequest},
		{"missing field", "/api/v1/climate/e1_n1_climate/temperature", map[string]any{}, http.StatusBadRequest},
		{"not a climate", "/api/v1/climate/e1_n1_temp/fan_mode", map[string]any{"fan_mode": "Low"}, http.StatusNotFound},
		{"number out of bounds", "/api/v1/number/e1_n1_temp_setpoint/value", map[string]any{"value": 50}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := f.do(t, http.MethodPost, tt.path, tt.body, "")
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	if n := len(f.cloud.Writes()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestSwitchAndNumber(t *testing.T) {
	f := newFixture(t, Config{})

	resp, body := f.do(t, http.MethodPost, "/api/v1/switch/e1_n1_radiant_enabled/off", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["value"] != false {
		t.Errorf("switch value = %v, want false", body["value"])
	}

	resp, body = f.do(t, http.MethodPost, "/api/v1/number/e1_n1_temp_setpoint/value", map[string]any{"value": 25}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["value"] != float64(25) {
		t.Errorf("number value = %v, want 25", body["value"])
	}
}

func TestSwitch_WriteFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, Config{})
	f.cloud.FailParam("radiant_enabled")

	resp, body := f.do(t, http.MethodPost, "/api/v1/switch/e1_n1_radiant_enabled/off", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["value"] != true {
		t.Errorf("switch value = %v, want true", body["value"])
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, Config{})

	resp, _ := f.do(t, http.MethodPost, "/api/v1/refresh", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	f.cloud.SetListStatus(http.StatusInternalServerError)
	resp, body := f.do(t, http.MethodPost, "/api/v1/refresh", nil, "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if body["nodes"] != float64(1) {
		t.Errorf("nodes = %v, want 1 (stale snapshot kept)", body["nodes"])
	}
	if body["reason"] != "Cannot reach Rainmaker cloud - check network connection" {
		t.Errorf("reason = %v", body["reason"])
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/status", nil, "")
	if body["last_update_success"] != false || body["last_error"] == nil || body["last_error_reason"] == nil {
		t.Errorf("status = %v", body)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, Config{TokenSecret: "s3cret", TokenTTL: time.Hour})

	token, err := f.server.Tokens().Issue("tester")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	other, _ := NewTokenIssuer("other", time.Hour).Issue("tester")

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing token", "/api/v1/entities", "", http.StatusUnauthorized},
		{"wrong secret", "/api/v1/entities", other, http.StatusUnauthorized},
		{"valid token", "/api/v1/entities", token, http.StatusOK},
		{"query token", "/api/v1/entities?token=" + token, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := f.do(t, http.MethodGet, tt.path, nil, tt.token)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Config{TokenSecret: "s3cret"})

	resp, _ := f.do(t, http.MethodOptions, "/api/v1/entities", nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestStartAndShutdown(t *testing.T) {
	f := newFixture(t, Config{Host: "127.0.0.1", Port: 0})

	if err := f.server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.server.Start(); err == nil {
		t.Error("second Start() succeeded")
	}

	resp, err := http.Get("http://" + f.server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
