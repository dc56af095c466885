package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"sportsroz.org/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorFields(w, r, code, msg, nil)
}

func writeErrorFields(w http.ResponseWriter, r *http.Request, code int, msg string, fields map[string]string) {
	payload := map[string]any{
		"error": msg,
	}
	if len(fields) > 0 {
		payload["fields"] = fields
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError maps the domain error taxonomy onto HTTP statuses.
// Anything unmapped becomes a generic 500 with no internals leaked.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	fields := auth.FieldsOf(err)
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrOTPExpired),
		errors.Is(err, auth.ErrOTPMismatch):
		writeErrorFields(w, r, http.StatusBadRequest, err.Error(), fields)
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrUnauthorized):
		writeErrorFields(w, r, http.StatusUnauthorized, err.Error(), fields)
	case errors.Is(err, auth.ErrForbidden):
		writeErrorFields(w, r, http.StatusForbidden, err.Error(), fields)
	case errors.Is(err, auth.ErrNotFound):
		writeErrorFields(w, r, http.StatusNotFound, err.Error(), fields)
	case errors.Is(err, auth.ErrConflict):
		writeErrorFields(w, r, http.StatusConflict, err.Error(), fields)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
