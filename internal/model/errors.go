package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by storage adapters when a key is absent.
var ErrNotFound = errors.New("not found")

// Operation names a remote operation against the users resource.
type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{OpList, OpGet, OpCreate, OpUpdate, OpDelete}

// DefaultMessage is the user-facing message used when the server does not supply one.
func (o Operation) DefaultMessage() string {
	switch o {
	case OpList:
		return "Failed to fetch users"
	case OpGet:
		return "Failed to fetch user"
	case OpCreate:
		return "Failed to create user"
	case OpUpdate:
		return "Failed to update user"
	case OpDelete:
		return "Failed to delete user"
	default:
		return "Request failed"
	}
}

// FieldViolation describes one failed validation rule.
type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is raised before any request is made.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return "invalid user: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// TransportError is a network or HTTP level failure.
// Message is the server-supplied message when available, else the operation default.
type TransportError struct {
	Op         Operation
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when the backend answers 404 for an item.
type NotFoundError struct {
	Op      Operation
	ID      int64
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// MalformedResponseError is returned when a response body does not have the expected shape.
type MalformedResponseError struct {
	Op  Operation
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op.DefaultMessage(), e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
