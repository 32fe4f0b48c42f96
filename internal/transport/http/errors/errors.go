// errors maps service errors onto HTTP responses with a uniform body:
//
//	{"error":{"code":"...","message":"...","request_id":"..."}}
//
// Messages are the short texts of the service sentinels; wrapped causes
// (storage, session, driver errors) never reach the client.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JosephRemingston/insightAI/internal/service"
)

// StatusClientClosedRequest: non-standard "client closed request".
const StatusClientClosedRequest = 499

// APIError: error body for clients.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse: root object of an error response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type mapping struct {
	target error
	status int
	code   string
}

// Checked in order: the first match wins. Service sentinels come before
// context errors because a connect timeout is an upstream failure, not a
// request deadline.
var table = []mapping{
	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_argument"},
	{service.ErrEmptyPassword, http.StatusBadRequest, "invalid_argument"},
	{service.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrTokenRevoked, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrUserNotFound, http.StatusUnauthorized, "unauthenticated"},

	{service.ErrEmailTaken, http.StatusConflict, "already_exists"},
	{service.ErrAlreadyConnected, http.StatusConflict, "already_connected"},

	{service.ErrConnectionNotFound, http.StatusNotFound, "not_found"},
	{service.ErrNotConnected, http.StatusBadRequest, "not_connected"},
	{service.ErrIntegrity, http.StatusUnprocessableEntity, "integrity_error"},
	{service.ErrUpstream, http.StatusBadGateway, "upstream_unavailable"},

	{context.Canceled, StatusClientClosedRequest, "canceled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
}

// ToHTTP converts err into a status code and response body.
// nil and unknown errors are 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	if err != nil {
		for _, m := range table {
			if errors.Is(err, m.target) {
				return m.status, ErrorResponse{Error: APIError{
					Code:    m.code,
					Message: m.target.Error(),
				}}
			}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}

// WriteError writes the status and body, adding the X-Request-Id if present.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
