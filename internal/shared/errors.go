package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingToken  = fmt.Errorf("missing access token")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrListNotFound       = fmt.Errorf("list not found")
	ErrItemNotFound       = fmt.Errorf("item not found")
	ErrSnapshotNotFound   = fmt.Errorf("snapshot not found")

	// Realtime errors
	ErrNotConnected     = fmt.Errorf("realtime connection not established")
	ErrConnectionClosed = fmt.Errorf("realtime connection closed")
	ErrAckRejected      = fmt.Errorf("acknowledgement rejected")

	// Share errors
	ErrShareRevoked  = fmt.Errorf("this share link has been revoked")
	ErrListCompleted = fmt.Errorf("list is completed")
	ErrNotLoaded     = fmt.Errorf("list not loaded")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
