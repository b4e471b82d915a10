package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dtroode/userdir/internal/model"
)

// backendUser mirrors the backend JSON. Nested ids are not mapped and are dropped.
type backendUser struct {
	ID         *int64            `json:"id"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	DOB        string            `json:"dob"`
	Occupation string            `json:"occupation"`
	Gender     string            `json:"gender"`
	PhotoPath  string            `json:"photoPath"`
	Contact    *backendContact   `json:"contact"`
	Address    *backendAddress   `json:"address"`
	Academics  *backendAcademics `json:"academics"`
}

type backendContact struct {
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Fax         *string `json:"fax"`
	LinkedInURL *string `json:"linkedInUrl"`
}

type backendAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

type backendAcademics struct {
	PastSchools *[]string `json:"pastSchools"`
}

// DecodeUser decodes a single backend user object.
func DecodeUser(data []byte) (model.User, error) {
	var bu *backendUser
	if err := json.Unmarshal(data, &bu); err != nil {
		return model.User{}, malformed(err)
	}
	u, err := bu.toModel()
	if err != nil {
		return model.User{}, malformed(err)
	}
	return u, nil
}

// DecodeUsers decodes a backend array of users, preserving order.
func DecodeUsers(data []byte) ([]model.User, error) {
	var raw *[]*backendUser
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed(err)
	}
	if raw == nil {
		return nil, malformed(errors.New("expected an array of users, got null"))
	}

	users := make([]model.User, 0, len(*raw))
	for i, bu := range *raw {
		u, err := bu.toModel()
		if err != nil {
			return nil, malformed(fmt.Errorf("user at index %d: %w", i, err))
		}
		users = append(users, u)
	}
	return users, nil
}

func (bu *backendUser) toModel() (model.User, error) {
	switch {
	case bu == nil:
		return model.User{}, errors.New("user object is null")
	case bu.ID == nil:
		return model.User{}, errors.New("missing id")
	case bu.Contact == nil:
		return model.User{}, errors.New("missing contact object")
	case bu.Address == nil:
		return model.User{}, errors.New("missing address object")
	case bu.Academics == nil:
		return model.User{}, errors.New("missing academics object")
	case bu.Academics.PastSchools == nil:
		return model.User{}, errors.New("missing academics.pastSchools array")
	}

	schools := make([]model.PastSchool, 0, len(*bu.Academics.PastSchools))
	for _, name := range *bu.Academics.PastSchools {
		schools = append(schools, model.PastSchool{Name: name, Year: ""})
	}

	return model.User{
		ID: *bu.ID,
		Profile: model.Profile{
			FirstName:  bu.FirstName,
			LastName:   bu.LastName,
			DOB:        datePart(bu.DOB),
			Occupation: bu.Occupation,
			Gender:     bu.Gender,
			Contact: model.Contact{
				Email:       bu.Contact.Email,
				Phone:       bu.Contact.Phone,
				Fax:         optional(bu.Contact.Fax),
				LinkedInURL: optional(bu.Contact.LinkedInURL),
			},
			Address: model.Address{
				Street:  bu.Address.Street,
				City:    bu.Address.City,
				State:   bu.Address.State,
				Country: bu.Address.Country,
				ZipCode: bu.Address.ZipCode,
			},
			Academics: model.Academics{PastSchools: schools},
		},
		PhotoPath: bu.PhotoPath,
	}, nil
}

// datePart trims an ISO datetime to its date: "2000-01-02T00:00:00.000Z" -> "2000-01-02".
func datePart(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func malformed(err error) error {
	return &model.MalformedResponseError{Err: err}
}
