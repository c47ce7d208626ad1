package rainmaker

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeAuth indicates the cloud rejected the credentials
	ErrTypeAuth ErrorType = iota
	// ErrTypeConnection indicates a transport-level failure (refused, timeout, DNS)
	ErrTypeConnection
	// ErrTypeFormat indicates a response that does not match the expected shape
	ErrTypeFormat
	// ErrTypeRemote indicates a write the cloud did not accept
	ErrTypeRemote
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeFormat:
		return "Format Error"
	case ErrTypeRemote:
		return "Remote Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// APIError represents an error that occurred while talking to the Rainmaker cloud
type APIError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	NodeID     string    // Node the error relates to (writes only)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether the next poll may succeed
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError wraps a transport error into a connection error with a
// message describing the failure.
func ClassifyNetworkError(err error) *APIError {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if classified := ClassifyNetworkError(urlErr.Err); classified != nil {
			classified.Err = err
			return classified
		}
	}

	message := "network error occurred"
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case os.IsTimeout(err):
		message = "request timed out"
	case errors.As(err, &dnsErr):
		message = fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		message = "connection refused"
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EHOSTUNREACH):
		message = "host unreachable"
	}

	return &APIError{
		Type:      ErrTypeConnection,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewConnectionError creates a connection error with automatic classification
func NewConnectionError(message string, err error) *APIError {
	if err == nil {
		return &APIError{Type: ErrTypeConnection, Message: message, Retryable: true}
	}
	classified := ClassifyNetworkError(err)
	classified.Message = message + ": " + classified.Message
	return classified
}

// NewAuthError creates an authentication error
func NewAuthError(message string, statusCode int, err error) *APIError {
	return &APIError{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
		Retryable:  false,
	}
}

// NewFormatError creates a response-shape error
func NewFormatError(message string, err error) *APIError {
	return &APIError{
		Type:      ErrTypeFormat,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewRemoteError creates a write failure for a node
func NewRemoteError(nodeID, message string, statusCode int, err error) *APIError {
	return &APIError{
		Type:       ErrTypeRemote,
		Message:    message,
		StatusCode: statusCode,
		NodeID:     nodeID,
		Err:        err,
		Retryable:  statusCode >= 500,
	}
}

func isType(err error, t ErrorType) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == t
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool { return isType(err, ErrTypeAuth) }

// IsConnectionError checks if an error is a transport error
func IsConnectionError(err error) bool { return isType(err, ErrTypeConnection) }

// IsFormatError checks if an error is a response-shape error
func IsFormatError(err error) bool { return isType(err, ErrTypeFormat) }

// IsRemoteError checks if an error is a rejected write
func IsRemoteError(err error) bool { return isType(err, ErrTypeRemote) }

// IsRetryable checks if the next poll could succeed where this one failed
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Type {
	case ErrTypeAuth:
		return "Authentication failed - check username and password"
	case ErrTypeConnection:
		return "Cannot reach Rainmaker cloud - check network connection"
	case ErrTypeFormat:
		return "Unexpected response from Rainmaker cloud"
	case ErrTypeRemote:
		if apiErr.NodeID != "" {
			return fmt.Sprintf("Node %s rejected the update", apiErr.NodeID)
		}
		return "Rainmaker cloud rejected the update"
	default:
		return apiErr.Message
	}
}
