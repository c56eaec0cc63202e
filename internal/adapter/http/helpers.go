package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/run"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Names used in error envelopes that are not part of the run taxonomy.
const (
	nameUnauthorized = "Unauthorized"
	nameForbidden    = "Forbidden"
	nameConflict     = "Conflict"
	nameBadRequest   = "BadRequest"
	nameTooLarge     = "RequestTooLarge"
)

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, nameTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, nameBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, run.NameValidation, fieldName+" is required")
		return false
	}
	return true
}

type errorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Name: name, Message: message}})
}

// statusCancelled is the non-standard "client closed request" status.
const statusCancelled = 499

// errorStatus maps err onto an HTTP status and an error name.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, run.NameNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, run.NameValidation
	case errors.Is(err, domain.ErrMalformedConfig):
		return http.StatusBadRequest, run.NameMalformedConfig
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, nameUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, nameForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, nameConflict
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return http.StatusUnprocessableEntity, run.NameUnsupportedProvider
	case errors.Is(err, domain.ErrDecryption):
		return http.StatusInternalServerError, run.NameDecryption
	case errors.Is(err, context.Canceled):
		return statusCancelled, run.NameCancelled
	case errors.Is(err, domain.ErrGeneration),
		errors.Is(err, domain.ErrMalformedStream),
		errors.Is(err, domain.ErrIncompleteToolCall),
		errors.Is(err, domain.ErrIncompleteStream),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, run.Name(err)
	}
	return http.StatusInternalServerError, run.NameInternal
}

// writeDomainError answers with the error envelope for err. Internal errors
// are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, name := errorStatus(err)
	msg := err.Error()
	switch name {
	case run.NameInternal:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal server error"
	case run.NameDecryption:
		slog.ErrorContext(r.Context(), "credential decryption failed", "path", r.URL.Path, "error", err)
		msg = domain.ErrDecryption.Error()
	}
	writeError(w, status, name, msg)
}
