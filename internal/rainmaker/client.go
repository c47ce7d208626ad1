package rainmaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/muurk/multicontroller/internal/logging"
)

const (
	// DefaultHost is the public ESP RainMaker endpoint
	DefaultHost = "https://api.rainmaker.espressif.com"

	// APIVersion is the REST API version prefix
	APIVersion = "v1"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of a response body is read
	maxResponseSize = 8 << 20

	// maxPages bounds node-list pagination
	maxPages = 50
)

// Client is an HTTP client for the ESP RainMaker REST API
type Client struct {
	// BaseURL is the API host (e.g., "https://api.rainmaker.espressif.com")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	validator *Validator
}

// NewClient creates a new Rainmaker client for the given host. An empty host
// selects DefaultHost.
func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		BaseURL:    strings.TrimRight(host, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		validator:  MustNewValidator(),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.BaseURL, APIVersion, strings.TrimLeft(path, "/"))
}

// Login authenticates with username and password and returns a session
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{UserName: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("login2"), bytes.NewReader(body))
	if err != nil {
		return nil, NewConnectionError("failed to create login request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewConnectionError("login request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewConnectionError("failed to read login response", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &APIError{
			Type:       ErrTypeConnection,
			Message:    fmt.Sprintf("login failed with HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, NewAuthError(describeFailure(data, "login rejected"), resp.StatusCode, nil)
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, NewFormatError("failed to parse login response", err)
	}
	if lr.AccessToken == "" {
		return nil, NewAuthError(describeFailure(data, "login response carried no access token"), resp.StatusCode, nil)
	}

	return &Session{
		Username:     username,
		AccessToken:  lr.AccessToken,
		IDToken:      lr.IDToken,
		RefreshToken: lr.RefreshToken,
		IssuedAt:     time.Now(),
	}, nil
}

// ListNodes fetches every node with full detail, following pagination
func (c *Client) ListNodes(ctx context.Context, session *Session) (*NodeList, error) {
	if session == nil {
		return nil, NewConnectionError("not logged in", nil)
	}

	result := &NodeList{}
	startID := ""
	for page := 0; page < maxPages; page++ {
		list, err := c.listNodesPage(ctx, session, startID)
		if err != nil {
			return nil, err
		}
		result.Nodes = append(result.Nodes, list.Nodes...)
		result.Total = list.Total

		if list.NextID == "" || list.NextID == startID {
			return result, nil
		}
		startID = list.NextID
	}
	return nil, NewFormatError(fmt.Sprintf("node list still paginating after %d pages", maxPages), nil)
}

func (c *Client) listNodesPage(ctx context.Context, session *Session, startID string) (*NodeList, error) {
	query := url.Values{}
	query.Set("node_details", "true")
	if startID != "" {
		query.Set("start_id", startID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("user/nodes")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, NewConnectionError("failed to create node list request", err)
	}
	req.Header.Set("Authorization", session.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewConnectionError("node list request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewConnectionError("failed to read node list response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewAuthError(describeFailure(data, "session rejected"), resp.StatusCode, nil)
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{
			Type:       ErrTypeConnection,
			Message:    fmt.Sprintf("node list failed with HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}
	}

	logging.LogRawPayload("Node list page", data)
	return c.validator.ValidateNodeList(data)
}

// SetParams issues a batch parameter write and returns the per-node statuses
func (c *Client) SetParams(ctx context.Context, session *Session, updates []NodeParams) ([]NodeStatus, error) {
	if session == nil {
		return nil, NewConnectionError("not logged in", nil)
	}

	body, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameter update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint("user/nodes/params"), bytes.NewReader(body))
	if err != nil {
		return nil, NewConnectionError("failed to create parameter update request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", session.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewConnectionError("parameter update request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewConnectionError("failed to read parameter update response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, NewAuthError(describeFailure(data, "session rejected"), resp.StatusCode, nil)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		return nil, NewRemoteError("", describeFailure(data, fmt.Sprintf("parameter update failed with HTTP %d", resp.StatusCode)), resp.StatusCode, nil)
	}

	var statuses []NodeStatus
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, NewFormatError("failed to parse parameter update response", err)
	}
	return statuses, nil
}

// Close releases idle connections held by the HTTP client
func (c *Client) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

// describeFailure extracts the cloud's description from an error body
func describeFailure(data []byte, fallback string) string {
	var e apiErrorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Description != "" {
		return e.Description
	}
	return fallback
}
