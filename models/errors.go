package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeBlockedHost    = "BLOCKED_HOST"
	ErrCodeFetchTimeout   = "FETCH_TIMEOUT"
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeFallbackFailed = "FALLBACK_FAILED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// LookupError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type LookupError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// NewLookupError creates a new LookupError.
func NewLookupError(code, message string, err error) *LookupError {
	return &LookupError{Code: code, Message: message, Err: err}
}

// ToResponse converts an internal error to an API-facing ErrorResponse.
func (e *LookupError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code}
}
