// Package errors defines the service error taxonomy shared by all HTTP
// handlers and backend clients.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	CodeCredentialMissing     ErrorCode = "CREDENTIAL_MISSING"
	CodeCredentialInvalid     ErrorCode = "CREDENTIAL_INVALID"
	CodeInsufficientPrivilege ErrorCode = "INSUFFICIENT_PRIVILEGE"
	CodeValidationError       ErrorCode = "VALIDATION_ERROR"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeBackendError          ErrorCode = "BACKEND_ERROR"
)

// ServiceError carries an error code, a user-facing message, and the HTTP
// status the transport layer should emit.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair for diagnostics and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CredentialMissing reports an absent or malformed Authorization header.
func CredentialMissing(message string) *ServiceError {
	if message == "" {
		message = "missing credential"
	}
	return &ServiceError{Code: CodeCredentialMissing, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// CredentialInvalid reports a token the identity service rejected or could
// not resolve.
func CredentialInvalid(err error) *ServiceError {
	return &ServiceError{Code: CodeCredentialInvalid, Message: "invalid credential", HTTPStatus: http.StatusUnauthorized, Err: err}
}

// Forbidden reports a principal without the required role.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "insufficient privilege"
	}
	return &ServiceError{Code: CodeInsufficientPrivilege, Message: message, HTTPStatus: http.StatusForbidden}
}

// Validation reports rejected input before any write is attempted.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidationError, Message: message, HTTPStatus: http.StatusBadRequest}
}

// NotFound reports an absent target record.
func NotFound(resource, id string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]interface{}{"resource": resource, "id": id},
	}
}

// Internal reports an unexpected backend failure.
func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "internal error"
	}
	return &ServiceError{Code: CodeBackendError, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError returns err as a *ServiceError, unwrapping as needed, or
// nil when the chain carries none.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}
