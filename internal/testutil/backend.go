package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/userdir/internal/model"
)

// BackendUser is the JSON shape served by the users backend.
type BackendUser struct {
	ID         int64            `json:"id"`
	FirstName  string           `json:"firstName"`
	LastName   string           `json:"lastName"`
	DOB        string           `json:"dob"`
	Occupation string           `json:"occupation"`
	Gender     string           `json:"gender"`
	PhotoPath  string           `json:"photoPath"`
	Contact    BackendContact   `json:"contact"`
	Address    BackendAddress   `json:"address"`
	Academics  BackendAcademics `json:"academics"`
}

type BackendContact struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Fax         *string `json:"fax"`
	LinkedInURL *string `json:"linkedInUrl"`
}

type BackendAddress struct {
	ID      int64  `json:"id"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

type BackendAcademics struct {
	ID          int64    `json:"id"`
	PastSchools []string `json:"pastSchools"`
}

// RecordedRequest is a request seen by the fake backend.
type RecordedRequest struct {
	Method    string
	Path      string
	RequestID string
	Values    map[string][]string
	Files     map[string]string
}

type failure struct {
	status int
	body   string
}

// Backend is an in-memory users resource served over httptest.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    []BackendUser
	photos   map[string][]byte
	nextID   int64
	failures []failure
	requests []RecordedRequest
}

// NewBackend starts a fake backend. Close it with b.Server.Close.
func NewBackend() *Backend {
	b := &Backend{
		photos: make(map[string][]byte),
		nextID: 1,
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/users", b.handleList)
	r.Post("/users", b.handleCreate)
	r.Get("/users/{id}", b.handleGet)
	r.Put("/users/{id}", b.handleUpdate)
	r.Delete("/users/{id}", b.handleDelete)
	r.Get("/uploads/{name}", b.handlePhoto)

	b.Server = httptest.NewServer(r)
	return b
}

// URL returns the base URL of the backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close stops the server.
func (b *Backend) Close() {
	b.Server.Close()
}

// Seed stores users as-is, keeping their ids. Years are dropped like the real backend does.
func (b *Backend) Seed(users ...model.User) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, u := range users {
		bu := BackendUser{
			ID:         u.ID,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			DOB:        u.DOB,
			Occupation: u.Occupation,
			Gender:     u.Gender,
			PhotoPath:  u.PhotoPath,
			Contact: BackendContact{
				ID:          u.ID * 10,
				Email:       u.Contact.Email,
				Phone:       u.Contact.Phone,
				Fax:         u.Contact.Fax,
				LinkedInURL: u.Contact.LinkedInURL,
			},
			Address: BackendAddress{
				ID:      u.ID * 10,
				Street:  u.Address.Street,
				City:    u.Address.City,
				State:   u.Address.State,
				Country: u.Address.Country,
				ZipCode: u.Address.ZipCode,
			},
			Academics: BackendAcademics{ID: u.ID * 10, PastSchools: []string{}},
		}
		for _, s := range u.Academics.PastSchools {
			bu.Academics.PastSchools = append(bu.Academics.PastSchools, s.Name)
		}
		b.users = append(b.users, bu)
		if u.ID >= b.nextID {
			b.nextID = u.ID + 1
		}
	}
}

// SetPhoto stores bytes served at /uploads/name.
func (b *Backend) SetPhoto(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.photos[name] = data
}

// FailNext makes the next request answer status with body.
func (b *Backend) FailNext(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{status: status, body: body})
}

// Requests returns a copy of every recorded request.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// Users returns a copy of the stored users.
func (b *Backend) Users() []BackendUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BackendUser, len(b.users))
	copy(out, b.users)
	return out
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			RequestID: r.Header.Get("X-Request-ID"),
		}

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				writeMessage(w, http.StatusBadRequest, "invalid multipart form")
				return
			}
			rec.Values = r.MultipartForm.Value
			rec.Files = make(map[string]string)
			for name, files := range r.MultipartForm.File {
				if len(files) > 0 {
					rec.Files[name] = files[0].Filename
				}
			}
		}

		b.mu.Lock()
		b.requests = append(b.requests, rec)
		var fail *failure
		if len(b.failures) > 0 {
			fail = &b.failures[0]
			b.failures = b.failures[1:]
		}
		b.mu.Unlock()

		if fail != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.Users())
}

func (b *Backend) handleGet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(r)
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, b.users[i])
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.MultipartForm == nil {
		writeMessage(w, http.StatusBadRequest, "multipart form expected")
		return
	}
	files := r.MultipartForm.File["photo"]
	if len(files) == 0 {
		writeMessage(w, http.StatusBadRequest, "Photo is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	bu := BackendUser{ID: id}
	applyForm(&bu, r.MultipartForm.Value, false)
	bu.Contact.ID, bu.Address.ID, bu.Academics.ID = id*10, id*10, id*10

	path, err := b.storePhoto(id, r)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	bu.PhotoPath = path

	b.users = append(b.users, bu)
	writeJSON(w, http.StatusCreated, bu)
}

func (b *Backend) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.MultipartForm == nil {
		writeMessage(w, http.StatusBadRequest, "multipart form expected")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(r)
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}

	bu := b.users[i]
	applyForm(&bu, r.MultipartForm.Value, true)
	if len(r.MultipartForm.File["photo"]) > 0 {
		path, err := b.storePhoto(bu.ID, r)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, err.Error())
			return
		}
		bu.PhotoPath = path
	}

	b.users[i] = bu
	writeJSON(w, http.StatusOK, bu)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(r)
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	b.users = append(b.users[:i], b.users[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handlePhoto(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	data, ok := b.photos[chi.URLParam(r, "name")]
	b.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

// indexOf must be called with b.mu held.
func (b *Backend) indexOf(r *http.Request) int {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1
	}
	for i, u := range b.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// storePhoto must be called with b.mu held.
func (b *Backend) storePhoto(id int64, r *http.Request) (string, error) {
	fh := r.MultipartForm.File["photo"][0]
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s", id, fh.Filename)
	b.photos[name] = data
	return "uploads/" + name, nil
}

// applyForm copies submitted fields. On update, absent optional fields stay untouched.
func applyForm(bu *BackendUser, values map[string][]string, update bool) {
	get := func(key string) (string, bool) {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}
	set := func(dst *string, key string) {
		if v, ok := get(key); ok || !update {
			*dst = v
		}
	}
	setOptional := func(dst **string, key string) {
		if v, ok := get(key); ok {
			*dst = &v
		} else if !update {
			*dst = nil
		}
	}

	set(&bu.FirstName, "firstName")
	set(&bu.LastName, "lastName")
	set(&bu.DOB, "dob")
	set(&bu.Occupation, "occupation")
	set(&bu.Gender, "gender")
	set(&bu.Contact.Email, "contact[email]")
	set(&bu.Contact.Phone, "contact[phone]")
	setOptional(&bu.Contact.Fax, "contact[fax]")
	setOptional(&bu.Contact.LinkedInURL, "contact[linkedInUrl]")
	set(&bu.Address.Street, "address[street]")
	set(&bu.Address.City, "address[city]")
	set(&bu.Address.State, "address[state]")
	set(&bu.Address.Country, "address[country]")
	set(&bu.Address.ZipCode, "address[zipCode]")

	schools := values["academics[pastSchools][]"]
	if schools == nil {
		schools = []string{}
	}
	bu.Academics.PastSchools = append([]string{}, schools...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
