package store

import "github.com/dtroode/userdir/internal/model"

// Status is the lifecycle of one operation slot.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// OpState is the status of the latest call of one operation.
// Message and Err are set only when Status is failed.
type OpState struct {
	Status  Status `json:"status"`
	Message string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// State is a snapshot of the store.
type State struct {
	Users   []model.User                `json:"users"`
	Current *model.User                 `json:"current"`
	Ops     map[model.Operation]OpState `json:"ops"`
}

func newState() State {
	ops := make(map[model.Operation]OpState, len(model.Operations))
	for _, op := range model.Operations {
		ops[op] = OpState{Status: StatusIdle}
	}
	return State{
		Users: []model.User{},
		Ops:   ops,
	}
}

// Op returns the slot of op. Unknown operations are idle.
func (s State) Op(op model.Operation) OpState {
	if st, ok := s.Ops[op]; ok {
		return st
	}
	return OpState{Status: StatusIdle}
}

// User returns the cached user with id.
func (s State) User(id int64) (model.User, bool) {
	if i := indexOf(s.Users, id); i >= 0 {
		return s.Users[i], true
	}
	return model.User{}, false
}

func (s State) clone() State {
	out := State{
		Users: cloneUsers(s.Users),
		Ops:   make(map[model.Operation]OpState, len(s.Ops)),
	}
	if s.Current != nil {
		cur := s.Current.Clone()
		out.Current = &cur
	}
	for op, st := range s.Ops {
		out.Ops[op] = st
	}
	return out
}

func cloneUsers(users []model.User) []model.User {
	out := make([]model.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}

func indexOf(users []model.User, id int64) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
