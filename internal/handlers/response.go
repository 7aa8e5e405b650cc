// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON HTTP endpoints. Handlers decode the
// request, call a service and encode the result; errors from any layer are
// mapped to a status code in writeError.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/service"
)

// maxJSONBody bounds request bodies; the largest valid payload is an
// article of 100000 characters.
const maxJSONBody = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// envelope is the shape of every JSON response body.
type envelope map[string]any

// errorBody is the JSON body of a failed request.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeMessage writes {message} with an optional named resource.
func writeMessage(w http.ResponseWriter, status int, message, key string, resource any) {
	body := envelope{"message": message}
	if key != "" {
		body[key] = resource
	}
	writeJSON(w, status, body)
}

// writeError maps err to a status code and writes {error, field?}.
// Errors that are not domain errors are logged and reported as a generic
// 500 so internals never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	switch {
	case errors.Is(err, service.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, service.ErrImageTooLarge), errors.Is(err, errBodyTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
	case errors.As(err, &appErr):
		writeJSON(w, statusFor(appErr), errorBody{Error: appErr.Message, Field: appErr.Field})
	default:
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func statusFor(err *apperror.AppError) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into dst. Malformed or empty
// bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return apperror.ValidationFailed("", "malformed JSON body")
	}
	return nil
}

// uuidParam parses a UUID route parameter. Unparseable ids name nothing,
// so they are reported as not found.
func uuidParam(r *http.Request, name, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperror.NotFoundf("%s not found", resource)
	}
	return id, nil
}

// intQuery parses an optional positive integer query parameter.
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return n, nil
}
