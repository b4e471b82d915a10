package model

// User represents a persisted user profile as known to the client.
type User struct {
	ID int64 `json:"id"`
	Profile
	PhotoPath string `json:"photoPath"`
}

// Profile contains the fields shared by persisted and pending users.
type Profile struct {
	FirstName  string    `json:"firstName" validate:"required"`
	LastName   string    `json:"lastName" validate:"required"`
	DOB        string    `json:"dob" validate:"required"`
	Occupation string    `json:"occupation" validate:"required"`
	Gender     string    `json:"gender" validate:"required"`
	Contact    Contact   `json:"contact"`
	Address    Address   `json:"address"`
	Academics  Academics `json:"academics"`
}

// Contact holds contact details. Fax and LinkedInURL are nil when absent.
type Contact struct {
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required"`
	Fax         *string `json:"fax"`
	LinkedInURL *string `json:"linkedInUrl" validate:"omitempty,url"`
}

// Address holds a postal address.
type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Country string `json:"country" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
}

// Academics holds academic history in insertion order.
type Academics struct {
	PastSchools []PastSchool `json:"pastSchools" validate:"dive"`
}

// PastSchool is a single academic history entry.
// Year is never persisted by the backend and decodes as an empty string.
type PastSchool struct {
	Name string `json:"name" validate:"required"`
	Year string `json:"year"`
}

// Photo is an uploaded image payload.
type Photo struct {
	Filename string
	Content  []byte
}

// Empty reports whether the photo carries no usable payload.
func (p Photo) Empty() bool {
	return p.Filename == "" || len(p.Content) == 0
}

// NewRecord is a user that has not been persisted yet. Photo is mandatory.
type NewRecord struct {
	Profile
	Photo Photo
}

// ExistingRecord is a replacement for an already persisted user.
// A nil Photo keeps the stored one.
type ExistingRecord struct {
	ID int64
	Profile
	Photo *Photo
}

// ExistingFrom prefills an ExistingRecord from a persisted user.
func ExistingFrom(u User) ExistingRecord {
	return ExistingRecord{
		ID:      u.ID,
		Profile: u.Profile.Clone(),
	}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.Contact.Fax = cloneString(p.Contact.Fax)
	out.Contact.LinkedInURL = cloneString(p.Contact.LinkedInURL)
	if p.Academics.PastSchools != nil {
		out.Academics.PastSchools = make([]PastSchool, len(p.Academics.PastSchools))
		copy(out.Academics.PastSchools, p.Academics.PastSchools)
	}
	return out
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	out := u
	out.Profile = u.Profile.Clone()
	return out
}

// String returns a pointer to s, or nil if s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
