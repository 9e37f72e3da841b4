package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"accruals/internal/core"
	applog "accruals/internal/log"
)

// maxBodyBytes bounds every request body read by the API.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
	}
}

// writeError maps the error taxonomy onto a status code and a structured body.
// Provider messages are passed through verbatim.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		v *core.ValidationError
		a *core.AuthenticationError
		x *core.ExternalServiceError
	)
	switch {
	case errors.As(err, &v):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Kind: "validation", Message: v.Message, Field: v.Field,
		}})
	case errors.As(err, &a):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
			Kind: "authentication", Message: a.Error(),
		}})
	case errors.As(err, &x):
		msg := x.Message
		if msg == "" {
			msg = x.Error()
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Kind: "external_service", Message: msg,
		}})
	default:
		applog.FromContext(ctx).ErrorContext(ctx, "Unhandled request error",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeInternal)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Kind: "internal", Message: "internal server error",
		}})
	}
}

// decodeJSON reads a size-bounded JSON body into dst. Numbers are kept as
// json.Number so amounts never pass through float64.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &core.ValidationError{Message: "request body too large"}
		}
		return &core.ValidationError{Message: "malformed JSON body: " + err.Error()}
	}
	return nil
}
