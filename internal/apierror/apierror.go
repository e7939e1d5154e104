// Package apierror defines the structured error body every protected
// endpoint returns on failure and the small set of constructors the
// rest of the API surface uses to build one.
package apierror

import (
	"net/http"
	"strings"

	"github.com/subraAntoine/apilexia/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Type is one of the error-type enum values the wire schema allows.
type Type string

const (
	TypeInvalidRequest Type = "invalid_request_error"
	TypeAuthentication Type = "authentication_error"
	TypeRateLimit      Type = "rate_limit_error"
	TypeServer         Type = "server_error"
	TypeAPI            Type = "api_error"
)

// Error is the internal representation of a failed request; Respond
// renders it as the wire schema `{error:{message,type,param,code}}`.
type Error struct {
	Status  int
	Message string
	Kind    Type
	Param   string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

// Respond writes the error body and aborts the gin context with the
// error's status code.
func (e *Error) Respond(c *gin.Context) {
	body := gin.H{
		"error": gin.H{
			"message": e.Message,
			"type":    string(e.Kind),
			"param":   nullableString(e.Param),
			"code":    nullableString(e.Code),
		},
	}
	c.AbortWithStatusJSON(e.Status, body)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Validation builds a 400 invalid_request_error, optionally naming the
// offending field (param) and a machine-readable code.
func Validation(message, param, code string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Kind: TypeInvalidRequest, Param: param, Code: code}
}

// FileTooLarge builds the VALIDATION failure for an upload that
// exceeds the configured size limit.
func FileTooLarge() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "uploaded file exceeds the configured size limit",
		Kind:    TypeInvalidRequest,
		Param:   "audio",
		Code:    "file_too_large",
	}
}

// Auth builds an authentication_error for the given wire code
// (missing_authorization, invalid_api_key, auth_revoked, auth_expired).
func Auth(code, message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message, Kind: TypeAuthentication, Code: code}
}

// RateLimit builds a 429 carrying the retry-after hint in the message;
// callers also set the Retry-After header separately.
func RateLimit(message string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Message: message, Kind: TypeRateLimit, Code: "rate_limit_exceeded"}
}

// NotFound builds the 404 used both for a genuinely missing row and
// for one owned by a different principal: identical response either
// way so existence can't be probed.
func NotFound(resource string) *Error {
	code := strings.ReplaceAll(resource, " ", "_") + "_not_found"
	return &Error{Status: http.StatusNotFound, Message: resource + " not found", Kind: TypeInvalidRequest, Code: code}
}

// CannotCancel builds the 400 returned when a cancel is attempted on a
// job that has already left the pending/queued states.
func CannotCancel() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "job cannot be cancelled in its current state",
		Kind:    TypeInvalidRequest,
		Param:   "job_id",
		Code:    "job_not_cancellable",
	}
}

// Internal builds a 500 server_error, never leaking the underlying
// error's text to the client; the error is still logged server-side.
func Internal(err error) *Error {
	logger.Error("internal server error", "error", err)
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error", Kind: TypeServer, Code: "internal_error"}
}
