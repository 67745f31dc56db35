// Package oauth defines the OAuth 2.0 error taxonomy returned by the
// authorization, token, revocation and resource endpoints.
package oauth

import (
	"errors"
	"net/http"
)

// Error codes from RFC 6749, RFC 6750 and RFC 7009.
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeInvalidScope            = "invalid_scope"
	CodeAccessDenied            = "access_denied"
	CodeInvalidToken            = "invalid_token"
	CodeInsufficientScope       = "insufficient_scope"
	CodeServerError             = "server_error"
	CodeTemporarilyUnavailable  = "temporarily_unavailable"
)

// Error is an OAuth error response. It is returned as a value by the core
// services and rendered by the HTTP layer.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// New builds an Error with the HTTP status conventionally used for code.
func New(code, description string) *Error {
	return &Error{Code: code, Description: description, Status: statusFor(code)}
}

func statusFor(code string) int {
	switch code {
	case CodeInvalidClient, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeInsufficientScope:
		return http.StatusForbidden
	case CodeServerError:
		return http.StatusInternalServerError
	case CodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func InvalidRequest(desc string) *Error          { return New(CodeInvalidRequest, desc) }
func InvalidClient(desc string) *Error           { return New(CodeInvalidClient, desc) }
func InvalidGrant(desc string) *Error            { return New(CodeInvalidGrant, desc) }
func UnauthorizedClient(desc string) *Error      { return New(CodeUnauthorizedClient, desc) }
func UnsupportedGrantType(desc string) *Error    { return New(CodeUnsupportedGrantType, desc) }
func UnsupportedResponseType(desc string) *Error { return New(CodeUnsupportedResponseType, desc) }
func InvalidScope(desc string) *Error            { return New(CodeInvalidScope, desc) }
func AccessDenied(desc string) *Error            { return New(CodeAccessDenied, desc) }
func InvalidToken(desc string) *Error            { return New(CodeInvalidToken, desc) }
func InsufficientScope(desc string) *Error       { return New(CodeInsufficientScope, desc) }
func ServerError(desc string) *Error             { return New(CodeServerError, desc) }

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given OAuth error code.
func IsCode(err error, code string) bool {
	oerr, ok := As(err)
	return ok && oerr.Code == code
}
