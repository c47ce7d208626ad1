package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/multicontroller/internal/coordinator"
)

type wsMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func runHub(t *testing.T, f *fixture) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.server.Hub().Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestWebSocket_Welcome(t *testing.T) {
	f := newFixture(t, Config{})
	runHub(t, f)

	conn := dial(t, f)
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeWelcome {
		t.Fatalf("Type = %q, want welcome", msg.Type)
	}

	var data WelcomeData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if data.ClientID == "" {
		t.Error("ClientID is empty")
	}
	if len(data.Entities) != 8 {
		t.Errorf("len(Entities) = %d, want 8", len(data.Entities))
	}
}

func TestWebSocket_Commands(t *testing.T) {
	f := newFixture(t, Config{})
	runHub(t, f)

	conn := dial(t, f)
	readMessage(t, conn)

	if err := conn.WriteJSON(ClientMessage{Type: MessageTypePing}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("Type = %q, want pong", msg.Type)
	}

	if err := conn.WriteJSON(ClientMessage{Type: "bogus"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypeError {
		t.Errorf("Type = %q, want error", msg.Type)
	}

	if err := conn.WriteJSON(ClientMessage{Type: MessageTypeRefresh}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeUpdate {
		t.Fatalf("Type = %q, want update", msg.Type)
	}
	var data UpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !data.Success || data.Nodes != 1 || len(data.Entities) != 8 {
		t.Errorf("update = %+v", data)
	}
}

func TestWebSocket_BroadcastsFailedCycle(t *testing.T) {
	f := newFixture(t, Config{})
	runHub(t, f)

	conn := dial(t, f)
	readMessage(t, conn)

	f.cloud.SetListStatus(502)
	_ = f.rt.Coordinator.Refresh(context.Background())

	msg := readMessage(t, conn)
	var data UpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if data.Success || data.Error == "" {
		t.Errorf("update = %+v, want failure with error", data)
	}
	if data.Nodes != 1 {
		t.Errorf("Nodes = %d, want 1", data.Nodes)
	}
	if data.Reason == "" || !data.Retry {
		t.Errorf("Reason = %q, Retry = %v, want a retryable reason", data.Reason, data.Retry)
	}
}

func TestWebSocket_HubStopClosesClients(t *testing.T) {
	f := newFixture(t, Config{})
	cancel := runHub(t, f)

	conn := dial(t, f)
	readMessage(t, conn)

	cancel()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() succeeded after hub stop")
	}
	if n := f.server.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
}

func TestNewUpdateMessage(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewUpdateMessage(coordinator.Update{Success: false, Nodes: 2, Skipped: 1, Err: coordinator.ErrUpdateFailed, At: at}, nil)

	if msg.Type != MessageTypeUpdate || !msg.Timestamp.Equal(at) {
		t.Errorf("msg = %+v", msg)
	}
	data := msg.Data.(UpdateData)
	if data.Error != "update failed" || data.Skipped != 1 {
		t.Errorf("data = %+v", data)
	}
}
