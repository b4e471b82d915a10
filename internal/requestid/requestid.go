// Package requestid correlates view requests with the backend calls they trigger.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the request id in both directions.
const Header = "X-Request-ID"

type requestIDKey struct{}

// Manager stores and retrieves request ids on a context.
type Manager struct{}

// NewManager creates a new request id manager.
func NewManager() *Manager {
	return &Manager{}
}

// SetRequestIDToContext returns a copy of ctx carrying requestID.
func (m *Manager) SetRequestIDToContext(ctx context.Context, requestID uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestIDFromContext returns the request id stored on ctx, if any.
func (m *Manager) GetRequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(requestIDKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Parse reads a request id from a header value. Invalid or empty values yield a fresh id.
func Parse(value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil || id == uuid.Nil {
		return uuid.New()
	}
	return id
}
