package wire

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/dtroode/userdir/internal/model"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// ValidateNew checks a record before it is sent to the backend.
// Optional contact fields are normalized in place.
func ValidateNew(rec *model.NewRecord) error {
	violations := validateProfile(&rec.Profile)
	if rec.Photo.Empty() {
		violations = append(violations, model.FieldViolation{Field: "photo", Rule: "required"})
	}
	return asError(violations)
}

// ValidateExisting checks an update before it is sent to the backend.
func ValidateExisting(rec *model.ExistingRecord) error {
	var violations []model.FieldViolation
	if rec.ID <= 0 {
		violations = append(violations, model.FieldViolation{Field: "id", Rule: "required"})
	}
	violations = append(violations, validateProfile(&rec.Profile)...)
	if rec.Photo != nil && rec.Photo.Empty() {
		violations = append(violations, model.FieldViolation{Field: "photo", Rule: "required"})
	}
	return asError(violations)
}

func validateProfile(p *model.Profile) []model.FieldViolation {
	normalizeOptional(&p.Contact)

	err := validatorInstance().Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.FieldViolation{{Field: "profile", Rule: err.Error()}}
	}

	out := make([]model.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.FieldViolation{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
		})
	}
	return out
}

// fieldPath drops the root struct name: "Profile.contact.email" -> "contact.email".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func normalizeOptional(c *model.Contact) {
	if c.Fax != nil && *c.Fax == "" {
		c.Fax = nil
	}
	if c.LinkedInURL != nil && *c.LinkedInURL == "" {
		c.LinkedInURL = nil
	}
}

func asError(violations []model.FieldViolation) error {
	if len(violations) == 0 {
		return nil
	}
	return &model.ValidationError{Fields: violations}
}
