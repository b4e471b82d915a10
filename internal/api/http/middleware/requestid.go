package middleware

import (
	"net/http"

	"github.com/dtroode/userdir/internal/model"
	"github.com/dtroode/userdir/internal/requestid"
)

// RequestID stores the caller's request id on the context, or a fresh one, and echoes it back.
type RequestID struct {
	contextManager model.ContextManager
}

// NewRequestID creates a new RequestID middleware.
func NewRequestID(contextManager model.ContextManager) *RequestID {
	return &RequestID{contextManager: contextManager}
}

// Handle wraps next.
func (m *RequestID) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestid.Parse(r.Header.Get(requestid.Header))
		w.Header().Set(requestid.Header, id.String())

		ctx := m.contextManager.SetRequestIDToContext(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
