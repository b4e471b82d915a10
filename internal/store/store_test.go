package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/userdir/internal/model"
	"github.com/dtroode/userdir/internal/testutil"
)

// MockUserAPI mocks the UserAPI interface
type MockUserAPI struct {
	mock.Mock
}

func (m *MockUserAPI) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserAPI) Get(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserAPI) Create(ctx context.Context, rec model.NewRecord) (model.User, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserAPI) Update(ctx context.Context, rec model.ExistingRecord) (model.User, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserAPI) Delete(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func profile(first string) model.Profile {
	return model.Profile{
		FirstName:  first,
		LastName:   "Lovelace",
		DOB:        "1815-12-10",
		Occupation: "Mathematician",
		Gender:     "female",
		Contact:    model.Contact{Email: "a@x.com", Phone: "1"},
		Address: model.Address{
			Street: "1 Rd", City: "C", State: "S", Country: "Co", ZipCode: "0",
		},
		Academics: model.Academics{PastSchools: []model.PastSchool{{Name: "Cambridge"}}},
	}
}

func user(id int64, first string) model.User {
	return model.User{ID: id, Profile: profile(first), PhotoPath: "uploads/x.png"}
}

func ids(users []model.User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func wait[T any](t *testing.T, r *Result[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := r.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "operation did not resolve")
	return v, err
}

// seed loads users into a fresh store through a successful list.
func seed(t *testing.T, users ...model.User) (*Store, *MockUserAPI) {
	t.Helper()
	api := &MockUserAPI{}
	api.On("List", mock.Anything).Return(users, nil).Once()

	s := New(api, testutil.MakeNoopLogger())
	_, err := wait(t, s.FetchUsers(context.Background()))
	require.NoError(t, err)
	return s, api
}

func TestNew_Idle(t *testing.T) {
	s := New(&MockUserAPI{}, testutil.MakeNoopLogger())
	st := s.State()

	assert.Empty(t, st.Users)
	assert.Nil(t, st.Current)
	for _, op := range model.Operations {
		assert.Equal(t, StatusIdle, st.Op(op).Status, op)
	}
}

func TestStore_FetchUsers(t *testing.T) {
	s, api := seed(t, user(5, "B"), user(3, "A"))

	st := s.State()
	assert.Equal(t, []int64{5, 3}, ids(st.Users))
	assert.Equal(t, StatusSucceeded, st.Op(model.OpList).Status)
	assert.Empty(t, st.Op(model.OpList).Message)
	api.AssertExpectations(t)
}

func TestStore_FetchUsers_FailureKeepsData(t *testing.T) {
	s, api := seed(t, user(3, "A"), user(5, "B"))

	cause := &model.TransportError{Op: model.OpList, StatusCode: 500, Message: "Failed to fetch users"}
	api.On("List", mock.Anything).Return([]model.User(nil), cause).Once()

	_, err := wait(t, s.FetchUsers(context.Background()))
	require.ErrorIs(t, err, cause)

	st := s.State()
	assert.Equal(t, []int64{3, 5}, ids(st.Users))
	assert.Equal(t, StatusFailed, st.Op(model.OpList).Status)
	assert.Equal(t, "Failed to fetch users", st.Op(model.OpList).Message)
	assert.ErrorIs(t, st.Op(model.OpList).Err, cause)
}

func TestStore_FetchUser(t *testing.T) {
	t.Run("sets current", func(t *testing.T) {
		api := &MockUserAPI{}
		api.On("Get", mock.Anything, int64(7)).Return(user(7, "Ada"), nil)
		s := New(api, testutil.MakeNoopLogger())

		u, err := wait(t, s.FetchUser(context.Background(), 7))
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)

		st := s.State()
		require.NotNil(t, st.Current)
		assert.Equal(t, int64(7), st.Current.ID)
		assert.Empty(t, st.Users)
	})

	t.Run("not found keeps current", func(t *testing.T) {
		api := &MockUserAPI{}
		api.On("Get", mock.Anything, int64(7)).Return(user(7, "Ada"), nil).Once()
		api.On("Get", mock.Anything, int64(8)).
			Return(model.User{}, &model.NotFoundError{Op: model.OpGet, ID: 8, Message: "Failed to fetch user"}).Once()
		s := New(api, testutil.MakeNoopLogger())

		_, err := wait(t, s.FetchUser(context.Background(), 7))
		require.NoError(t, err)
		_, err = wait(t, s.FetchUser(context.Background(), 8))

		var nerr *model.NotFoundError
		require.ErrorAs(t, err, &nerr)
		st := s.State()
		require.NotNil(t, st.Current)
		assert.Equal(t, int64(7), st.Current.ID)
		assert.Equal(t, StatusFailed, st.Op(model.OpGet).Status)
		assert.Equal(t, "Failed to fetch user", st.Op(model.OpGet).Message)
	})
}

func TestStore_CreateUser(t *testing.T) {
	s, api := seed(t, user(3, "A"), user(5, "B"))

	rec := model.NewRecord{Profile: profile("Ada"), Photo: model.Photo{Filename: "a.png", Content: []byte{1}}}
	api.On("Create", mock.Anything, mock.AnythingOfType("model.NewRecord")).Return(user(1, "Ada"), nil)

	u, err := wait(t, s.CreateUser(context.Background(), rec))
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	st := s.State()
	assert.Equal(t, []int64{3, 5, 1}, ids(st.Users), "created user is appended whatever its id")
	assert.Equal(t, StatusSucceeded, st.Op(model.OpCreate).Status)
}

func TestStore_CreateUser_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		rec   model.NewRecord
		field string
	}{
		{
			name:  "missing photo",
			rec:   model.NewRecord{Profile: profile("Ada")},
			field: "photo",
		},
		{
			name: "bad email",
			rec: func() model.NewRecord {
				p := profile("Ada")
				p.Contact.Email = "nope"
				return model.NewRecord{Profile: p, Photo: model.Photo{Filename: "a.png", Content: []byte{1}}}
			}(),
			field: "contact.email",
		},
		{
			name: "missing first name",
			rec: func() model.NewRecord {
				p := profile("")
				return model.NewRecord{Profile: p, Photo: model.Photo{Filename: "a.png", Content: []byte{1}}}
			}(),
			field: "firstName",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockUserAPI{}
			s := New(api, testutil.MakeNoopLogger())

			res := s.CreateUser(context.Background(), tt.rec)
			select {
			case <-res.Done():
			default:
				t.Fatal("validation failure must resolve immediately")
			}

			_, err := wait(t, res)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), verr.Error())

			st := s.State()
			assert.Equal(t, StatusFailed, st.Op(model.OpCreate).Status)
			assert.NotEmpty(t, st.Op(model.OpCreate).Message)
			assert.Empty(t, st.Users)
			api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestStore_UpdateUser(t *testing.T) {
	t.Run("replaces by id", func(t *testing.T) {
		s, api := seed(t, user(3, "A"), user(5, "B"), user(7, "C"))
		api.On("Get", mock.Anything, int64(5)).Return(user(5, "B"), nil)
		_, err := wait(t, s.FetchUser(context.Background(), 5))
		require.NoError(t, err)

		api.On("Update", mock.Anything, mock.AnythingOfType("model.ExistingRecord")).Return(user(5, "Bee"), nil)
		_, err = wait(t, s.UpdateUser(context.Background(), model.ExistingFrom(user(5, "Bee"))))
		require.NoError(t, err)

		st := s.State()
		assert.Equal(t, []int64{3, 5, 7}, ids(st.Users))
		assert.Equal(t, "Bee", st.Users[1].FirstName)
		require.NotNil(t, st.Current)
		assert.Equal(t, "Bee", st.Current.FirstName)
		assert.Equal(t, StatusSucceeded, st.Op(model.OpUpdate).Status)
	})

	t.Run("miss leaves collection unchanged", func(t *testing.T) {
		s, api := seed(t, user(3, "A"), user(7, "C"))
		api.On("Update", mock.Anything, mock.AnythingOfType("model.ExistingRecord")).Return(user(9, "Z"), nil)

		_, err := wait(t, s.UpdateUser(context.Background(), model.ExistingFrom(user(9, "Z"))))
		require.NoError(t, err)

		st := s.State()
		assert.Equal(t, []int64{3, 7}, ids(st.Users))
		assert.Equal(t, "A", st.Users[0].FirstName)
		assert.Equal(t, "C", st.Users[1].FirstName)
		assert.Equal(t, StatusSucceeded, st.Op(model.OpUpdate).Status)
	})

	t.Run("invalid id never calls the backend", func(t *testing.T) {
		api := &MockUserAPI{}
		s := New(api, testutil.MakeNoopLogger())

		_, err := wait(t, s.UpdateUser(context.Background(), model.ExistingRecord{Profile: profile("A")}))
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("id"))
		api.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestStore_DeleteUser(t *testing.T) {
	t.Run("removes by id", func(t *testing.T) {
		s, api := seed(t, user(3, "A"), user(5, "B"), user(7, "C"))
		api.On("Get", mock.Anything, int64(5)).Return(user(5, "B"), nil)
		_, err := wait(t, s.FetchUser(context.Background(), 5))
		require.NoError(t, err)

		api.On("Delete", mock.Anything, int64(5)).Return(int64(5), nil)
		id, err := wait(t, s.DeleteUser(context.Background(), 5))
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)

		st := s.State()
		assert.Equal(t, []int64{3, 7}, ids(st.Users))
		assert.Nil(t, st.Current)
		assert.Equal(t, StatusSucceeded, st.Op(model.OpDelete).Status)
	})

	t.Run("failure keeps the record", func(t *testing.T) {
		s, api := seed(t, user(3, "A"), user(5, "B"))
		api.On("Delete", mock.Anything, int64(5)).
			Return(int64(0), &model.TransportError{Op: model.OpDelete, StatusCode: 500, Message: "locked"})

		_, err := wait(t, s.DeleteUser(context.Background(), 5))
		require.Error(t, err)

		st := s.State()
		assert.Equal(t, []int64{3, 5}, ids(st.Users))
		assert.Equal(t, StatusFailed, st.Op(model.OpDelete).Status)
		assert.Equal(t, "locked", st.Op(model.OpDelete).Message)
	})
}

func TestStore_PendingClearsError(t *testing.T) {
	api := &MockUserAPI{}
	api.On("List", mock.Anything).Return([]model.User(nil), errors.New("boom")).Once()

	release := make(chan struct{})
	api.On("List", mock.Anything).Run(func(mock.Arguments) { <-release }).Return([]model.User{user(1, "A")}, nil).Once()

	s := New(api, testutil.MakeNoopLogger())
	_, err := wait(t, s.FetchUsers(context.Background()))
	require.Error(t, err)
	assert.Equal(t, StatusFailed, s.State().Op(model.OpList).Status)

	res := s.FetchUsers(context.Background())
	pending := s.State().Op(model.OpList)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Empty(t, pending.Message)
	assert.NoError(t, pending.Err)

	close(release)
	_, err = wait(t, res)
	require.NoError(t, err)
}

func TestStore_Subscribe(t *testing.T) {
	api := &MockUserAPI{}
	release := make(chan struct{})
	api.On("List", mock.Anything).Run(func(mock.Arguments) { <-release }).Return([]model.User{user(1, "A")}, nil)

	s := New(api, testutil.MakeNoopLogger())

	var (
		mu       sync.Mutex
		statuses []Status
		counts   []int
	)
	cancel := s.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, st.Op(model.OpList).Status)
		counts = append(counts, len(st.Users))
	})

	res := s.FetchUsers(context.Background())
	mu.Lock()
	assert.Equal(t, []Status{StatusPending}, statuses)
	mu.Unlock()

	close(release)
	_, err := wait(t, res)
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []Status{StatusPending, StatusSucceeded}, statuses)
	assert.Equal(t, []int{0, 1}, counts)
	mu.Unlock()

	cancel()
	cancel()
	_, err = wait(t, s.FetchUsers(context.Background()))
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, statuses, 2)
	mu.Unlock()
}

func TestStore_SubscriberReadsStateDuringDispatch(t *testing.T) {
	api := &MockUserAPI{}
	api.On("List", mock.Anything).Return([]model.User{user(3, "A")}, nil)
	api.On("Get", mock.Anything, int64(3)).Return(user(3, "A"), nil)

	s := New(api, testutil.MakeNoopLogger())

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var (
		once   sync.Once
		mu     sync.Mutex
		seen   []Status
		inside State
	)
	s.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st.Op(model.OpGet).Status)
		mu.Unlock()

		if st.Op(model.OpList).Status == StatusSucceeded && st.Op(model.OpGet).Status == StatusIdle {
			once.Do(func() {
				close(entered)
				<-proceed
				inside = s.State()
			})
		}
	})

	list := s.FetchUsers(context.Background())
	<-entered

	dispatched := make(chan *Result[model.User], 1)
	go func() {
		dispatched <- s.FetchUser(context.Background(), 3)
	}()

	assert.Eventually(t, func() bool {
		return s.State().Op(model.OpGet).Status != StatusIdle
	}, 2*time.Second, 5*time.Millisecond, "State blocked while a subscriber was running")
	close(proceed)

	var get *Result[model.User]
	select {
	case get = <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked while a subscriber read state")
	}

	_, err := wait(t, list)
	require.NoError(t, err)
	_, err = wait(t, get)
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, ids(inside.Users))
	assert.NotEqual(t, StatusIdle, inside.Op(model.OpGet).Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusIdle, StatusIdle, StatusPending, StatusSucceeded}, seen)
}

func TestStore_LastResolveWins(t *testing.T) {
	api := &MockUserAPI{}
	started := make(chan struct{})
	release := make(chan struct{})
	api.On("List", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]model.User{user(1, "slow")}, nil).Once()
	api.On("List", mock.Anything).Return([]model.User{user(2, "fast")}, nil).Once()

	s := New(api, testutil.MakeNoopLogger())

	slow := s.FetchUsers(context.Background())
	<-started
	_, err := wait(t, s.FetchUsers(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(s.State().Users))

	close(release)
	_, err = wait(t, slow)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(s.State().Users))
}

func TestStore_DetachedFromCallerCancellation(t *testing.T) {
	api := &MockUserAPI{}
	release := make(chan struct{})
	api.On("List", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	})).Run(func(mock.Arguments) { <-release }).Return([]model.User{user(1, "A")}, nil)

	s := New(api, testutil.MakeNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.FetchUsers(ctx)
	_, err := res.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	_, err = wait(t, res)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(s.State().Users))
}

func TestStore_StateIsACopy(t *testing.T) {
	s, _ := seed(t, user(3, "A"))

	st := s.State()
	st.Users[0].FirstName = "mutated"
	st.Users[0].Academics.PastSchools[0].Name = "mutated"
	st.Ops[model.OpList] = OpState{Status: StatusFailed}

	fresh := s.State()
	assert.Equal(t, "A", fresh.Users[0].FirstName)
	assert.Equal(t, "Cambridge", fresh.Users[0].Academics.PastSchools[0].Name)
	assert.Equal(t, StatusSucceeded, fresh.Op(model.OpList).Status)
}
