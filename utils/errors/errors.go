package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the failure value carried through the state layer and
// returned by the backend. Callers discriminate on Code, never on the
// message text.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput       = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrInvalidCredentials = NewAPIError("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrAccountLocked      = NewAPIError("ACCOUNT_LOCKED", "Account is locked", http.StatusForbidden)
	ErrPermissionDenied   = NewAPIError("PERMISSION_DENIED", "Insufficient permissions", http.StatusForbidden)
	ErrUnauthorized       = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound           = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrNetwork            = NewAPIError("NETWORK_ERROR", "Request failed", http.StatusBadGateway)
	ErrInternal           = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// CodeOf extracts the taxonomy code from an error, or UNKNOWN_ERROR for
// anything that did not originate in this layer.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "UNKNOWN_ERROR"
}
