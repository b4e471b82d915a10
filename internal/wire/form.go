package wire

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/dtroode/userdir/internal/model"
)

// KeyPastSchoolYear carries the year of each school in a browser submission, aligned with
// KeyPastSchool by position. The backend does not store years, so it is never encoded.
const KeyPastSchoolYear = "academics[pastSchoolYears][]"

// ParseNewForm reads a browser submission for a new user.
func ParseNewForm(form *multipart.Form) (model.NewRecord, error) {
	profile := parseProfile(form.Value)

	photo, err := parsePhoto(form)
	if err != nil {
		return model.NewRecord{}, err
	}

	rec := model.NewRecord{Profile: profile}
	if photo != nil {
		rec.Photo = *photo
	}

	if err := checkSchools(profile); err != nil {
		return rec, err
	}
	return rec, nil
}

// ParseExistingForm reads a browser submission that edits user id.
// An empty photo input keeps the stored photo.
func ParseExistingForm(id int64, form *multipart.Form) (model.ExistingRecord, error) {
	profile := parseProfile(form.Value)

	photo, err := parsePhoto(form)
	if err != nil {
		return model.ExistingRecord{}, err
	}

	rec := model.ExistingRecord{ID: id, Profile: profile, Photo: photo}
	if err := checkSchools(profile); err != nil {
		return rec, err
	}
	return rec, nil
}

func parseProfile(values map[string][]string) model.Profile {
	first := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var schools []model.PastSchool
	years := values[KeyPastSchoolYear]
	for i, name := range values[KeyPastSchool] {
		school := model.PastSchool{Name: name}
		if i < len(years) {
			school.Year = strings.TrimSpace(years[i])
		}
		schools = append(schools, school)
	}

	return model.Profile{
		FirstName:  first(KeyFirstName),
		LastName:   first(KeyLastName),
		DOB:        first(KeyDOB),
		Occupation: first(KeyOccupation),
		Gender:     first(KeyGender),
		Contact: model.Contact{
			Email:       first(KeyEmail),
			Phone:       first(KeyPhone),
			Fax:         model.String(first(KeyFax)),
			LinkedInURL: model.String(first(KeyLinkedInURL)),
		},
		Address: model.Address{
			Street:  first(KeyStreet),
			City:    first(KeyCity),
			State:   first(KeyState),
			Country: first(KeyCountry),
			ZipCode: first(KeyZipCode),
		},
		Academics: model.Academics{PastSchools: schools},
	}
}

func parsePhoto(form *multipart.Form) (*model.Photo, error) {
	files := form.File[KeyPhoto]
	if len(files) == 0 || files[0].Size == 0 {
		return nil, nil
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}

	return &model.Photo{Filename: fh.Filename, Content: content}, nil
}

// checkSchools applies the input rules for academic history: at least one school, each with a year.
func checkSchools(p model.Profile) error {
	if len(p.Academics.PastSchools) == 0 {
		return &model.ValidationError{Fields: []model.FieldViolation{
			{Field: "academics.pastSchools", Rule: "min"},
		}}
	}

	var violations []model.FieldViolation
	for i, school := range p.Academics.PastSchools {
		if school.Year == "" {
			violations = append(violations, model.FieldViolation{
				Field: fmt.Sprintf("academics.pastSchools[%d].year", i),
				Rule:  "required",
			})
		}
	}
	return asError(violations)
}
