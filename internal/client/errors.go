package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dtroode/userdir/internal/model"
)

// errorBody is the backend's error payload.
type errorBody struct {
	Message string `json:"message"`
}

// statusError normalizes a non-2xx response. The server message wins over the default.
func statusError(op model.Operation, id int64, status int, body []byte) error {
	message := serverMessage(body)
	if message == "" {
		message = op.DefaultMessage()
	}

	if status == http.StatusNotFound && op != model.OpList && op != model.OpCreate {
		return &model.NotFoundError{Op: op, ID: id, Message: message}
	}
	return &model.TransportError{Op: op, StatusCode: status, Message: message}
}

func serverMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return strings.TrimSpace(eb.Message)
}

func tagMalformed(op model.Operation, err error) error {
	var merr *model.MalformedResponseError
	if errors.As(err, &merr) {
		merr.Op = op
		return merr
	}
	return &model.MalformedResponseError{Op: op, Err: err}
}
