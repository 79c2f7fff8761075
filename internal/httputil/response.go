// Package httputil holds the JSON response helpers shared by the API
// handlers and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"themedesk/internal/models"
)

// maxBodyBytes caps request bodies; drafts are a few kilobytes.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error writes a JSON error with an explicit code.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// StatusFor maps a domain error kind to an HTTP status. Failures of an
// upstream service are reported as 502.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalid:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindPrecondition:
		return http.StatusConflict
	case models.KindFetch, models.KindUpdate, models.KindGeneration,
		models.KindNotification, models.KindPublish:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Fail writes err as a JSON error. Domain errors keep their message and
// kind; anything else is logged and reported as a generic 500.
func Fail(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	if kind == "" {
		slog.Error("internal error", "error", err)
		Error(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	Error(w, StatusFor(kind), string(kind), err.Error())
}

// Decode reads JSON from the request body into dst. It returns false and
// writes a 400 response if parsing fails. An empty body is allowed and
// leaves dst untouched.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, string(models.KindInvalid), "invalid JSON: "+err.Error())
		return false
	}
	return true
}
