// Package store keeps the client-side copy of the users collection in sync with the backend.
package store

import (
	"context"
	"sync"

	"github.com/dtroode/userdir/internal/logger"
	"github.com/dtroode/userdir/internal/model"
	"github.com/dtroode/userdir/internal/wire"
)

// Store caches users and tracks the status of every remote operation.
// Subscribers may read State but must not start store operations synchronously from their callback.
type Store struct {
	api    model.UserAPI
	logger *logger.Logger

	mu      sync.Mutex
	state   State
	pending []State

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub uint64

	// notifyMu serializes delivery of pending snapshots. It is never held together with mu.
	notifyMu sync.Mutex
}

type subscriber struct {
	id uint64
	fn func(State)
}

// New creates an empty store backed by api.
func New(api model.UserAPI, logger *logger.Logger) *Store {
	return &Store{
		api:    api,
		logger: logger,
		state:  newState(),
	}
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to be called with a snapshot after every transition.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// FetchUsers replaces the cached collection with the server's, in server order.
func (s *Store) FetchUsers(ctx context.Context) *Result[[]model.User] {
	return dispatch(ctx, s, model.OpList, 0, s.api.List, func(st *State, users []model.User) {
		st.Users = cloneUsers(users)
	})
}

// FetchUser loads a single user as the current record.
func (s *Store) FetchUser(ctx context.Context, id int64) *Result[model.User] {
	call := func(ctx context.Context) (model.User, error) {
		return s.api.Get(ctx, id)
	}
	return dispatch(ctx, s, model.OpGet, id, call, func(st *State, u model.User) {
		cur := u.Clone()
		st.Current = &cur
	})
}

// CreateUser validates rec and appends the created user to the collection.
func (s *Store) CreateUser(ctx context.Context, rec model.NewRecord) *Result[model.User] {
	if err := wire.ValidateNew(&rec); err != nil {
		return rejected[model.User](s, model.OpCreate, err)
	}

	call := func(ctx context.Context) (model.User, error) {
		return s.api.Create(ctx, rec)
	}
	return dispatch(ctx, s, model.OpCreate, 0, call, func(st *State, u model.User) {
		st.Users = append(st.Users, u.Clone())
	})
}

// UpdateUser validates rec and replaces the cached user with the same id.
// A response for an id that is no longer cached leaves the collection unchanged.
func (s *Store) UpdateUser(ctx context.Context, rec model.ExistingRecord) *Result[model.User] {
	if err := wire.ValidateExisting(&rec); err != nil {
		return rejected[model.User](s, model.OpUpdate, err)
	}

	call := func(ctx context.Context) (model.User, error) {
		return s.api.Update(ctx, rec)
	}
	return dispatch(ctx, s, model.OpUpdate, rec.ID, call, func(st *State, u model.User) {
		if i := indexOf(st.Users, u.ID); i >= 0 {
			st.Users[i] = u.Clone()
		} else {
			s.logger.Warn("updated user is not cached", "user_id", u.ID)
		}
		if st.Current != nil && st.Current.ID == u.ID {
			cur := u.Clone()
			st.Current = &cur
		}
	})
}

// DeleteUser removes a user and drops it from the collection.
func (s *Store) DeleteUser(ctx context.Context, id int64) *Result[int64] {
	call := func(ctx context.Context) (int64, error) {
		return s.api.Delete(ctx, id)
	}
	return dispatch(ctx, s, model.OpDelete, id, call, func(st *State, deleted int64) {
		if i := indexOf(st.Users, deleted); i >= 0 {
			st.Users = append(st.Users[:i:i], st.Users[i+1:]...)
		}
		if st.Current != nil && st.Current.ID == deleted {
			st.Current = nil
		}
	})
}

// dispatch marks op pending and performs call in its own goroutine.
// The call runs on a context detached from the caller's cancellation.
func dispatch[T any](
	ctx context.Context,
	s *Store,
	op model.Operation,
	id int64,
	call func(context.Context) (T, error),
	apply func(*State, T),
) *Result[T] {
	res := newResult[T]()
	callCtx := context.WithoutCancel(ctx)

	s.transition(func(st *State) {
		st.Ops[op] = OpState{Status: StatusPending}
	})
	s.logger.Debug("operation dispatched", "operation", string(op), "user_id", id)

	go func() {
		value, err := call(callCtx)
		if err != nil {
			s.logger.Warn("operation failed", "operation", string(op), "user_id", id, "error", err)
			s.transition(func(st *State) {
				st.Ops[op] = OpState{Status: StatusFailed, Message: err.Error(), Err: err}
			})
			res.resolve(value, err)
			return
		}

		s.transition(func(st *State) {
			apply(st, value)
			st.Ops[op] = OpState{Status: StatusSucceeded}
		})
		res.resolve(value, nil)
	}()

	return res
}

// rejected fails op without contacting the backend.
func rejected[T any](s *Store, op model.Operation, err error) *Result[T] {
	s.logger.Debug("operation rejected", "operation", string(op), "error", err)
	s.transition(func(st *State) {
		st.Ops[op] = OpState{Status: StatusFailed, Message: err.Error(), Err: err}
	})
	var zero T
	return resolved(zero, err)
}

// transition applies fn and queues the resulting snapshot under mu.
// Snapshots are delivered in queue order once mu is released, so subscribers may read State.
// It returns after the queued snapshot has been delivered.
func (s *Store) transition(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.pending = append(s.pending, s.state.clone())
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		snapshot := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.notify(snapshot)
	}
}

func (s *Store) notify(snapshot State) {
	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(snapshot.clone())
	}
}
