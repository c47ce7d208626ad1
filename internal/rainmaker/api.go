package rainmaker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/logging"
)

// DefaultService is the only parameter namespace the adapter reads and writes
const DefaultService = "multicontrol"

// Transport is the set of cloud calls the adapter needs. *Client implements it.
type Transport interface {
	Login(ctx context.Context, username, password string) (*Session, error)
	ListNodes(ctx context.Context, session *Session) (*NodeList, error)
	SetParams(ctx context.Context, session *Session, updates []NodeParams) ([]NodeStatus, error)
	Close() error
}

// API wraps authentication and the two remote operations behind a small
// surface. It is safe for concurrent use.
type API struct {
	// Host is the Rainmaker endpoint this adapter talks to
	Host string

	// Service is the parameter namespace (default: "multicontrol")
	Service string

	username  string
	password  string
	transport Transport

	mu        sync.Mutex
	session   *Session
	connected bool
}

// NewAPI creates an adapter backed by the HTTP client for host
func NewAPI(host, username, password string) *API {
	client := NewClient(host)
	return NewAPIWithTransport(client.BaseURL, client, username, password)
}

// NewAPIWithTransport creates an adapter over a custom transport
func NewAPIWithTransport(host string, transport Transport, username, password string) *API {
	return &API{
		Host:      host,
		Service:   DefaultService,
		username:  username,
		password:  password,
		transport: transport,
	}
}

// Username returns the account the adapter logs in with
func (a *API) Username() string {
	return a.username
}

// Connect logs in and stores the session. It may be called again to reconnect.
func (a *API) Connect(ctx context.Context) error {
	logging.Debug("Logging in to Rainmaker",
		zap.String("host", a.Host),
		zap.String("username", a.username),
	)

	session, err := a.transport.Login(ctx, a.username, a.password)
	if err != nil {
		a.mu.Lock()
		a.session = nil
		a.connected = false
		a.mu.Unlock()

		if IsConnectionError(err) {
			logging.Error("Network error during Rainmaker login", zap.Error(err))
			return err
		}
		logging.Error("Rainmaker login failed", zap.Error(err))
		if IsAuthError(err) {
			return err
		}
		return NewAuthError("authentication failed", 0, err)
	}

	a.mu.Lock()
	a.session = session
	a.connected = true
	a.mu.Unlock()

	logging.Info("Rainmaker login successful", zap.String("host", a.Host))
	return nil
}

// EnsureConnected connects only if there is no live session
func (a *API) EnsureConnected(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}
	return a.Connect(ctx)
}

// ListNodes fetches every node with full detail. An expired session is
// re-established once before giving up.
func (a *API) ListNodes(ctx context.Context) (*NodeList, error) {
	session, ok := a.currentSession()
	if !ok {
		return nil, NewConnectionError("not connected", nil)
	}

	list, err := a.transport.ListNodes(ctx, session)
	if err != nil && IsAuthError(err) {
		logging.Warn("Rainmaker session rejected, logging in again", zap.Error(err))
		if cerr := a.Connect(ctx); cerr != nil {
			return nil, cerr
		}
		session, _ = a.currentSession()
		list, err = a.transport.ListNodes(ctx, session)
	}
	if err != nil {
		logging.Error("Failed to fetch nodes", zap.Error(err))
		return nil, err
	}

	logging.Debug("Fetched node list", zap.Int("nodes", len(list.Nodes)))
	return list, nil
}

// SetParam writes one parameter value on one node
func (a *API) SetParam(ctx context.Context, nodeID, name string, value any) error {
	session, ok := a.currentSession()
	if !ok {
		return NewConnectionError("not connected", nil)
	}

	batch := []NodeParams{{
		NodeID:  nodeID,
		Payload: map[string]map[string]any{a.Service: {name: value}},
	}}

	statuses, err := a.transport.SetParams(ctx, session, batch)
	if err != nil {
		if IsRemoteError(err) {
			return err
		}
		return NewRemoteError(nodeID, "failed to set param", 0, err)
	}

	for _, st := range statuses {
		if st.NodeID == nodeID && st.Status != StatusSuccess {
			msg := "node reported status " + st.Status
			if st.Description != "" {
				msg += ": " + st.Description
			}
			return NewRemoteError(nodeID, msg, 0, nil)
		}
	}
	return nil
}

// Close releases the session. Transport errors are logged, never returned.
func (a *API) Close() {
	a.mu.Lock()
	a.session = nil
	a.connected = false
	a.mu.Unlock()

	if a.transport == nil {
		return
	}
	if err := a.transport.Close(); err != nil {
		logging.Debug("Error closing Rainmaker client", zap.Error(err))
	}
}

// IsConnected reports whether a session is held
func (a *API) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *API) currentSession() (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.connected && a.session != nil
}
