package graph

import (
	"errors"
	"fmt"

	"page-token-service/domain/dto"
)

// ErrorKind tags a normalized graph failure for callers that branch on
// failure class rather than raw codes.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindAuth      ErrorKind = "auth"
	KindNotFound  ErrorKind = "not_found"
	KindInternal  ErrorKind = "internal"
)

// CodeTokenInvalid is the platform error code meaning the access token is no
// longer usable. Compared exactly; it drives validity bookkeeping.
const CodeTokenInvalid = 190

// Graph error codes that indicate the subject could not be found.
const (
	codeUnsupportedGetRequest = 100
	codeObjectMissing         = 803
)

// APIError is the single normalized error shape for graph failures.
type APIError struct {
	Kind            ErrorKind `json:"kind"`
	Message         string    `json:"message"`
	Code            int       `json:"error_code,omitempty"`
	Subcode         int       `json:"error_subcode,omitempty"`
	UserTitle       string    `json:"error_user_title,omitempty"`
	UserMsg         string    `json:"error_user_msg,omitempty"`
	TraceID         string    `json:"fbtrace_id,omitempty"`
	WWWAuthenticate string    `json:"www_authenticate,omitempty"`
	HTTPStatus      int       `json:"http_status,omitempty"`
	Err             error     `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graph: %s (code %d, subcode %d)", e.Message, e.Code, e.Subcode)
	}
	return fmt.Sprintf("graph: %s", e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsTokenInvalid reports whether the failure means the token must be marked
// invalid.
func (e *APIError) IsTokenInvalid() bool { return e.Code == CodeTokenInvalid }

// FromBody normalizes the raw error object of a graph response.
func FromBody(body *dto.GraphErrorBody, httpStatus int, wwwAuthenticate string) *APIError {
	kind := KindInternal
	switch {
	case body.Code == CodeTokenInvalid || body.Code == 102 || body.Code == 104:
		kind = KindAuth
	case body.Code == codeObjectMissing || (body.Code == codeUnsupportedGetRequest && body.ErrorSubcode == 33) || httpStatus == 404:
		kind = KindNotFound
	}
	return &APIError{
		Kind:            kind,
		Message:         body.Message,
		Code:            body.Code,
		Subcode:         body.ErrorSubcode,
		UserTitle:       body.ErrorUserTitle,
		UserMsg:         body.ErrorUserMsg,
		TraceID:         body.FbTraceID,
		WWWAuthenticate: wwwAuthenticate,
		HTTPStatus:      httpStatus,
	}
}

// Transport wraps a connection-level failure that never produced a graph
// error body.
func Transport(err error) *APIError {
	return &APIError{Kind: KindTransport, Message: err.Error(), Err: err}
}

// Normalize coerces any error into an *APIError.
func Normalize(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Kind: KindInternal, Message: err.Error(), Err: err}
}
