package models

import "fmt"

// ErrorCode is a string type for consistent error codes.
type ErrorCode string

// Predefined error codes. They are logged and returned next to the message;
// clients are expected to branch on the HTTP status only.
const (
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeMissingParameter    ErrorCode = "missing_parameter"
	ErrorCodeStorageUnavailable  ErrorCode = "storage_unavailable"
	ErrorCodePayloadTooLarge     ErrorCode = "payload_too_large"
)

// APIError is the JSON error object written for every failed request.
type APIError struct {
	Code       ErrorCode `json:"code,omitempty"`
	Message    string    `json:"error"`
	StatusCode int       `json:"-"`
}

// Error makes APIError implement the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError is a constructor for APIError.
func NewAPIError(code ErrorCode, message string, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}
