// Package httputil holds JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "pension/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// Validatable request bodies normalize and check themselves after decoding.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the JSON envelope of every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto a status and JSON body. Internal and
// persistence failures hide their message.
func WriteError(w http.ResponseWriter, err error) {
	status, code, desc := describe(err)
	WriteJSON(w, status, ErrorResponse{Error: code, ErrorDescription: desc})
}

// StatusFor returns the HTTP status WriteError would use for err.
func StatusFor(err error) int {
	status, _, _ := describe(err)
	return status
}

func describe(err error) (int, string, string) {
	de, ok := dErrors.As(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, string(dErrors.CodeTimeout), ""
		}
		return http.StatusInternalServerError, string(dErrors.CodeInternal), ""
	}

	code := string(de.Code)
	switch de.Code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput,
		dErrors.CodeInvariantViolation:
		return http.StatusBadRequest, code, de.Message
	case dErrors.CodeDuplicatePeriodicContribution, dErrors.CodeConflict:
		return http.StatusConflict, code, de.Message
	case dErrors.CodeNotFound, dErrors.CodeNoContributionsFound:
		return http.StatusNotFound, code, de.Message
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, code, de.Message
	case dErrors.CodeForbidden:
		return http.StatusForbidden, code, de.Message
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout, code, ""
	default:
		return http.StatusInternalServerError, string(dErrors.CodeInternal), ""
	}
}

// DecodeAndPrepare decodes the JSON body into T and validates it. On failure
// it writes the error response, logs, and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid json payload"))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
