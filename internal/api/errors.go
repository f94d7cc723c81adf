package api

import "fmt"

// AuthError indicates the server rejected the credential: bad login,
// expired or invalid token. Callers return to the unauthenticated state.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// ValidationError indicates the server rejected the request payload.
// Local state is left unchanged and the message is shown inline.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request (status %d)", e.StatusCode)
	}
	return e.Message
}

// NetworkError wraps a transport failure where no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
