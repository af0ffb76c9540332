// internal/web/response.go
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"libris/internal/fault"
)

// Envelope is the message-bearing response body used by mutating endpoints
// and by every error response.
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes v as the raw response body.
func JSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("encode response", "error", err)
	}
}

// Message writes an envelope with a human-readable message and optional data.
func Message(w http.ResponseWriter, status int, message string, data any, logger *slog.Logger) {
	JSON(w, status, Envelope{Message: message, Data: data}, logger)
}

// Error maps a classified error onto its HTTP status and writes the message
// envelope. Unclassified and persistence errors are logged; their internals
// are not leaked to the client.
func Error(w http.ResponseWriter, err error, logger *slog.Logger) {
	kind := fault.KindOf(err)
	status := StatusForKind(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "kind", kind.String(), "error", err)
		}
		message = "internal server error"
	}

	JSON(w, status, Envelope{Message: message}, logger)
}

// StatusForKind maps the fault taxonomy onto HTTP status codes.
func StatusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindValidation, fault.KindStockExhausted:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindUnauthorized:
		return http.StatusUnauthorized
	case fault.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a request body, rejecting unknown payload shapes with a
// validation fault.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fault.Validation("invalid request body: %v", err)
	}
	return nil
}

// CheckStruct runs validator tags over a decoded request and converts the
// first failure into a validation fault.
func CheckStruct(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fault.Validation("field %q failed on the %q rule", fe.Field(), fe.Tag())
	}
	return fault.Validation("invalid request: %v", err)
}
