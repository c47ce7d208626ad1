package rainmaker

import (
	"encoding/json"
	"time"
)

// Session holds the tokens returned by a successful login
type Session struct {
	Username     string
	AccessToken  string
	IDToken      string
	RefreshToken string
	IssuedAt     time.Time
}

// loginRequest is the body of POST /v1/login2
type loginRequest struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

// loginResponse is the body returned by POST /v1/login2
type loginResponse struct {
	Status       string `json:"status"`
	Description  string `json:"description"`
	AccessToken  string `json:"accesstoken"`
	IDToken      string `json:"idtoken"`
	RefreshToken string `json:"refreshtoken"`
}

// NodeList is the raw node listing. Entries are kept undecoded so that one
// malformed node does not fail the whole listing.
type NodeList struct {
	Nodes  []json.RawMessage `json:"node_details"`
	NextID string            `json:"next_id,omitempty"`
	Total  int               `json:"total,omitempty"`
}

// NodeParams is one entry of a batch parameter write
type NodeParams struct {
	NodeID  string                    `json:"node_id"`
	Payload map[string]map[string]any `json:"payload"`
}

// NodeStatus is the per-node result of a batch parameter write
type NodeStatus struct {
	NodeID      string `json:"node_id"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// StatusSuccess is the status reported for an accepted write
const StatusSuccess = "success"

// apiErrorResponse is the error body the cloud returns on non-2xx responses
type apiErrorResponse struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}
