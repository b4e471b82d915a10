package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/userdir/internal/logger"
	"github.com/dtroode/userdir/internal/model"
	"github.com/dtroode/userdir/internal/photo"
	"github.com/dtroode/userdir/internal/store"
	"github.com/dtroode/userdir/internal/wire"
)

const maxFormMemory = 32 << 20

// UserStore is the record store driven by the view.
type UserStore interface {
	State() store.State
	FetchUsers(ctx context.Context) *store.Result[[]model.User]
	FetchUser(ctx context.Context, id int64) *store.Result[model.User]
	CreateUser(ctx context.Context, rec model.NewRecord) *store.Result[model.User]
	UpdateUser(ctx context.Context, rec model.ExistingRecord) *store.Result[model.User]
	DeleteUser(ctx context.Context, id int64) *store.Result[int64]
}

// PhotoResolver serves user photos.
type PhotoResolver interface {
	Fetch(ctx context.Context, photoPath string) photo.Image
	Forget(ctx context.Context, photoPath string)
}

// Users handles the users views.
type Users struct {
	store  UserStore
	photos PhotoResolver
	logger *logger.Logger
}

// NewUsers creates a new Users handler.
func NewUsers(store UserStore, photos PhotoResolver, logger *logger.Logger) *Users {
	return &Users{
		store:  store,
		photos: photos,
		logger: logger,
	}
}

type listView struct {
	Status store.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
	Users  []model.User `json:"users"`
}

type userView struct {
	Status store.Status           `json:"status"`
	Error  string                 `json:"error,omitempty"`
	User   *model.User            `json:"user,omitempty"`
	Fields []model.FieldViolation `json:"fields,omitempty"`
	Record *model.Profile         `json:"record,omitempty"`
}

type deleteView struct {
	Status store.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
	ID     int64        `json:"id"`
}

// State renders the current snapshot without contacting the backend.
func (h *Users) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.State())
}

// List refreshes the collection and renders it. Cached users are rendered on failure too.
func (h *Users) List(w http.ResponseWriter, r *http.Request) {
	_, err := h.store.FetchUsers(r.Context()).Wait(r.Context())
	if isCanceled(r, err) {
		return
	}

	st := h.store.State()
	view := listView{Status: st.Op(model.OpList).Status, Users: st.Users}
	if err != nil {
		view.Error = err.Error()
		writeJSON(w, errorStatus(err), view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Get loads one user as the current record.
func (h *Users) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	u, err := h.store.FetchUser(r.Context(), id).Wait(r.Context())
	if isCanceled(r, err) {
		return
	}
	if err != nil {
		writeJSON(w, errorStatus(err), userView{Status: store.StatusFailed, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, userView{Status: store.StatusSucceeded, User: &u})
}

// Create submits a multipart form as a new user.
func (h *Users) Create(w http.ResponseWriter, r *http.Request) {
	if h.pending(model.OpCreate) {
		writeError(w, http.StatusConflict, "a create is already in progress")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	rec, err := wire.ParseNewForm(r.MultipartForm)
	if err != nil {
		h.rejectForm(w, err, rec.Profile)
		return
	}

	u, err := h.store.CreateUser(r.Context(), rec).Wait(r.Context())
	if isCanceled(r, err) {
		return
	}
	if err != nil {
		h.rejectForm(w, err, rec.Profile)
		return
	}
	writeJSON(w, http.StatusCreated, userView{Status: store.StatusSucceeded, User: &u})
}

// Update submits a multipart form replacing user id. An empty photo input keeps the stored photo.
func (h *Users) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if h.pending(model.OpUpdate) {
		writeError(w, http.StatusConflict, "an update is already in progress")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	rec, err := wire.ParseExistingForm(id, r.MultipartForm)
	if err != nil {
		h.rejectForm(w, err, rec.Profile)
		return
	}

	previous, _ := h.store.State().User(id)

	u, err := h.store.UpdateUser(r.Context(), rec).Wait(r.Context())
	if isCanceled(r, err) {
		return
	}
	if err != nil {
		h.rejectForm(w, err, rec.Profile)
		return
	}
	if previous.PhotoPath != "" && previous.PhotoPath != u.PhotoPath {
		h.photos.Forget(r.Context(), previous.PhotoPath)
	}
	writeJSON(w, http.StatusOK, userView{Status: store.StatusSucceeded, User: &u})
}

// Delete removes a user and evicts its cached photo.
func (h *Users) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	removed, cached := h.store.State().User(id)

	deleted, err := h.store.DeleteUser(r.Context(), id).Wait(r.Context())
	if isCanceled(r, err) {
		return
	}
	if err != nil {
		writeJSON(w, errorStatus(err), deleteView{Status: store.StatusFailed, Error: err.Error(), ID: id})
		return
	}
	if cached {
		h.photos.Forget(r.Context(), removed.PhotoPath)
	}
	writeJSON(w, http.StatusOK, deleteView{Status: store.StatusSucceeded, ID: deleted})
}

// Photo serves the photo of a cached user, or the placeholder.
func (h *Users) Photo(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var photoPath string
	st := h.store.State()
	if u, ok := st.User(id); ok {
		photoPath = u.PhotoPath
	} else if st.Current != nil && st.Current.ID == id {
		photoPath = st.Current.PhotoPath
	}

	img := h.photos.Fetch(r.Context(), photoPath)
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if img.Placeholder {
		w.Header().Set("X-Photo-Placeholder", "true")
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=300")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// rejectForm echoes the entered record so the input is not lost.
func (h *Users) rejectForm(w http.ResponseWriter, err error, entered model.Profile) {
	h.logger.Debug("form rejected", "error", err)
	writeJSON(w, errorStatus(err), userView{
		Status: store.StatusFailed,
		Error:  err.Error(),
		Fields: violations(err),
		Record: &entered,
	})
}

func (h *Users) pending(op model.Operation) bool {
	return h.store.State().Op(op).Status == store.StatusPending
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

// isCanceled reports whether the caller went away while waiting. The operation itself keeps running.
func isCanceled(r *http.Request, err error) bool {
	return err != nil && r.Context().Err() != nil && errors.Is(err, r.Context().Err())
}
