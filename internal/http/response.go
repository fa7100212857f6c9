package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"farmbook/internal/auth"
	"farmbook/internal/core"
	flog "farmbook/internal/log"
	"farmbook/internal/middleware/trace"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidParam = "E_INVALID_PARAM"
	CodeUnauthorized = "E_UNAUTHORIZED"
	CodeNotFound     = "E_NOT_FOUND"
	CodeConflict     = "E_CONFLICT"
	CodeRateLimited  = "E_RATE_LIMITED"
	CodeInternal     = "E_INTERNAL"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// badRequestError marks a body that could not be decoded at all.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "malformed request body: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// errorStatus maps err to its HTTP status and envelope. Unknown errors map
// to 500 with a generic message.
func errorStatus(err error) (int, ErrorResponse) {
	var (
		ve  *core.ValidationError
		bad *badRequestError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Code:    CodeInvalidParam,
			Message: ve.Error(),
			Details: map[string]any{"field": ve.Field},
		}
	case errors.As(err, &bad):
		return http.StatusBadRequest, ErrorResponse{Code: CodeInvalidParam, Message: bad.Error()}
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Code: CodeUnauthorized, Message: "authentication required"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Code: CodeUnauthorized, Message: err.Error()}
	case errors.Is(err, core.ErrNotFoundOrUnauthorized):
		return http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: "not found"}
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, ErrorResponse{Code: CodeConflict, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: "internal error"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	body.RequestID = trace.GetRequestID(r.Context())

	if status >= http.StatusInternalServerError {
		flog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			flog.NewFields().WithError(err).ToSlice()...)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
