package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dtroode/userdir/internal/model"
)

// errorStatus maps a store failure to the view's HTTP status.
func errorStatus(err error) int {
	var (
		verr *model.ValidationError
		nerr *model.NotFoundError
		terr *model.TransportError
		merr *model.MalformedResponseError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &nerr):
		return http.StatusNotFound
	case errors.As(err, &terr), errors.As(err, &merr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func violations(err error) []model.FieldViolation {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
