package store

import "context"

// Result is the eventual outcome of a dispatched operation.
type Result[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

func resolved[T any](value T, err error) *Result[T] {
	r := newResult[T]()
	r.resolve(value, err)
	return r
}

func (r *Result[T]) resolve(value T, err error) {
	r.value, r.err = value, err
	close(r.done)
}

// Done is closed once the operation has been applied to the store.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the operation resolves or ctx ends.
// Giving up on ctx does not abort the operation.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
