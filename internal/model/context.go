package model

import (
	"context"

	"github.com/google/uuid"
)

// ContextManager carries the request id of the inbound view request
// so outbound backend calls can be correlated with it.
type ContextManager interface {
	SetRequestIDToContext(ctx context.Context, requestID uuid.UUID) context.Context
	GetRequestIDFromContext(ctx context.Context) (uuid.UUID, bool)
}
