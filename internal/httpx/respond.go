// Package httpx holds the JSON response helpers and middleware shared by the
// HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/apperr"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"success":false,"message":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError maps err onto the error taxonomy. Unclassified errors are
// logged and hidden behind a generic 500.
func RespondWithError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	var notFound *apperr.NotFoundError
	var invalid *apperr.ValidationError

	switch {
	case errors.As(err, &notFound):
		logger.WithFields(logrus.Fields{
			"entity":     notFound.Entity,
			"request_id": RequestID(r.Context()),
		}).Warn(notFound.Error())
		RespondWithJSON(w, http.StatusNotFound, ErrorResponse{
			Message: notFound.Error(),
			Error:   "not_found",
		})
	case errors.As(err, &invalid):
		RespondWithJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: "bad input",
			Error:   "validation_failed",
			Fields:  invalid.Fields,
		})
	case errors.Is(err, apperr.ErrConflict):
		RespondWithJSON(w, http.StatusConflict, ErrorResponse{
			Message: "resource already exists",
			Error:   "conflict",
		})
	case errors.Is(err, apperr.ErrUnauthorized):
		RespondWithJSON(w, http.StatusUnauthorized, ErrorResponse{
			Message: "unauthorized",
			Error:   "unauthorized",
		})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": RequestID(r.Context()),
		}).Error("Request failed")
		RespondWithJSON(w, http.StatusInternalServerError, ErrorResponse{
			Message: "internal server error",
			Error:   "store_failure",
		})
	}
}

// PathID reads a positive integer route variable.
func PathID(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// QueryInt reads an optional integer query parameter, returning 0 when absent.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(name, "must be an integer")
	}
	return v, nil
}
