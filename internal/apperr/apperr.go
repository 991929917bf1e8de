// Package apperr defines the error taxonomy shared by the session,
// registration and handler layers. Every failure that crosses a package
// boundary is an *Error carrying a Code so the routing layer can map it to an
// HTTP status without inspecting causes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeMissingAsset       Code = "MISSING_REQUIRED_ASSET"
	CodeUploadFailed       Code = "UPLOAD_FAILED"
	CodePersistenceError   Code = "PERSISTENCE_ERROR"
	CodeIntegrityError     Code = "INTEGRITY_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the taxonomy code from err, or CodeInternal if err was
// never classified.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to its status class. The exact mapping is the only
// routing-layer knowledge this package carries.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeMissingAsset:
		return http.StatusBadRequest
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidCredentials, CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
