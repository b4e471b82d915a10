package wire

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/dtroode/userdir/internal/model"
)

// Multipart keys understood by the backend.
const (
	KeyFirstName   = "firstName"
	KeyLastName    = "lastName"
	KeyDOB         = "dob"
	KeyOccupation  = "occupation"
	KeyGender      = "gender"
	KeyEmail       = "contact[email]"
	KeyPhone       = "contact[phone]"
	KeyFax         = "contact[fax]"
	KeyLinkedInURL = "contact[linkedInUrl]"
	KeyStreet      = "address[street]"
	KeyCity        = "address[city]"
	KeyState       = "address[state]"
	KeyCountry     = "address[country]"
	KeyZipCode     = "address[zipCode]"
	KeyPastSchool  = "academics[pastSchools][]"
	KeyPhoto       = "photo"
)

// Part is a single multipart field. File is set only for the photo part.
type Part struct {
	Name  string
	Value string
	File  *model.Photo
}

// Form is an ordered multipart submission.
type Form struct {
	parts []Part
}

// Parts returns the parts in submission order.
func (f *Form) Parts() []Part {
	return f.parts
}

// Values returns every text value submitted under name.
func (f *Form) Values(name string) []string {
	var out []string
	for _, p := range f.parts {
		if p.Name == name && p.File == nil {
			out = append(out, p.Value)
		}
	}
	return out
}

// Has reports whether any part is named name.
func (f *Form) Has(name string) bool {
	for _, p := range f.parts {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Body renders the form as multipart/form-data.
func (f *Form) Body() (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, p := range f.parts {
		if p.File != nil {
			if err := writeFile(w, p.Name, *p.File); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := w.WriteField(p.Name, p.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", p.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// EncodeNew validates rec and flattens it into a create submission.
func EncodeNew(rec model.NewRecord) (*Form, error) {
	rec.Profile = rec.Profile.Clone()
	if err := ValidateNew(&rec); err != nil {
		return nil, err
	}

	f := encodeProfile(rec.Profile)
	photo := rec.Photo
	f.parts = append(f.parts, Part{Name: KeyPhoto, File: &photo})
	return f, nil
}

// EncodeExisting validates rec and flattens it into an update submission.
// The photo part is present only when a replacement photo is supplied.
func EncodeExisting(rec model.ExistingRecord) (*Form, error) {
	rec.Profile = rec.Profile.Clone()
	if err := ValidateExisting(&rec); err != nil {
		return nil, err
	}

	f := encodeProfile(rec.Profile)
	if rec.Photo != nil {
		photo := *rec.Photo
		f.parts = append(f.parts, Part{Name: KeyPhoto, File: &photo})
	}
	return f, nil
}

func encodeProfile(p model.Profile) *Form {
	f := &Form{}
	add := func(name, value string) {
		f.parts = append(f.parts, Part{Name: name, Value: value})
	}
	addOptional := func(name string, value *string) {
		if value != nil && *value != "" {
			add(name, *value)
		}
	}

	add(KeyFirstName, p.FirstName)
	add(KeyLastName, p.LastName)
	add(KeyDOB, p.DOB)
	add(KeyOccupation, p.Occupation)
	add(KeyGender, p.Gender)

	add(KeyEmail, p.Contact.Email)
	add(KeyPhone, p.Contact.Phone)
	addOptional(KeyFax, p.Contact.Fax)
	addOptional(KeyLinkedInURL, p.Contact.LinkedInURL)

	add(KeyStreet, p.Address.Street)
	add(KeyCity, p.Address.City)
	add(KeyState, p.Address.State)
	add(KeyCountry, p.Address.Country)
	add(KeyZipCode, p.Address.ZipCode)

	// year is not accepted by the backend
	for _, school := range p.Academics.PastSchools {
		add(KeyPastSchool, school.Name)
	}

	return f
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, field string, photo model.Photo) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(photo.Filename)))
	h.Set("Content-Type", photoContentType(photo))

	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := pw.Write(photo.Content); err != nil {
		return fmt.Errorf("failed to write photo part: %w", err)
	}
	return nil
}

func photoContentType(photo model.Photo) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(photo.Filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(photo.Content)
}
