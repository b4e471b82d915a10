package model

import (
	"context"
	"net"
)

// UserAPI is the remote users resource.
type UserAPI interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, rec NewRecord) (User, error)
	Update(ctx context.Context, rec ExistingRecord) (User, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// SecurityLayer opens the listener for the view server.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a long-running listener with graceful shutdown.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}
