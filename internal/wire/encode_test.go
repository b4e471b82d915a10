package wire

import (
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/userdir/internal/model"
)

func adaProfile() model.Profile {
	return model.Profile{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		DOB:        "1815-12-10",
		Occupation: "Mathematician",
		Gender:     "female",
		Contact: model.Contact{
			Email: "a@x.com",
			Phone: "1",
		},
		Address: model.Address{
			Street:  "1 Rd",
			City:    "C",
			State:   "S",
			Country: "Co",
			ZipCode: "0",
		},
		Academics: model.Academics{PastSchools: []model.PastSchool{
			{Name: "Cambridge", Year: "1840"},
		}},
	}
}

func adaPhoto() model.Photo {
	return model.Photo{Filename: "ada.png", Content: []byte("\x89PNG\r\n\x1a\nfake")}
}

func TestEncodeNew_Parts(t *testing.T) {
	f, err := EncodeNew(model.NewRecord{Profile: adaProfile(), Photo: adaPhoto()})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ada"}, f.Values(KeyFirstName))
	assert.Equal(t, []string{"a@x.com"}, f.Values(KeyEmail))
	assert.Equal(t, []string{"Cambridge"}, f.Values(KeyPastSchool))
	assert.False(t, f.Has(KeyFax))
	assert.False(t, f.Has(KeyLinkedInURL))

	parts := f.Parts()
	last := parts[len(parts)-1]
	assert.Equal(t, KeyPhoto, last.Name)
	require.NotNil(t, last.File)
	assert.Equal(t, "ada.png", last.File.Filename)

	for _, p := range parts {
		assert.NotContains(t, p.Value, "1840", "year must never be sent")
	}
}

func TestEncodeNew_OptionalFields(t *testing.T) {
	tests := []struct {
		name      string
		fax       *string
		linkedIn  *string
		wantFax   []string
		wantLinks []string
	}{
		{name: "absent"},
		{name: "empty strings", fax: model.String(""), linkedIn: new(string)},
		{
			name:      "present",
			fax:       model.String("555-1234"),
			linkedIn:  model.String("https://linkedin.com/in/ada"),
			wantFax:   []string{"555-1234"},
			wantLinks: []string{"https://linkedin.com/in/ada"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := adaProfile()
			p.Contact.Fax = tt.fax
			p.Contact.LinkedInURL = tt.linkedIn

			f, err := EncodeNew(model.NewRecord{Profile: p, Photo: adaPhoto()})
			require.NoError(t, err)

			assert.Equal(t, tt.wantFax, f.Values(KeyFax))
			assert.Equal(t, tt.wantLinks, f.Values(KeyLinkedInURL))
		})
	}
}

func TestEncodeNew_PartOrder(t *testing.T) {
	p := adaProfile()
	p.Academics.PastSchools = append(p.Academics.PastSchools, model.PastSchool{Name: "Home"})

	f, err := EncodeNew(model.NewRecord{Profile: p, Photo: adaPhoto()})
	require.NoError(t, err)

	var names []string
	for _, part := range f.Parts() {
		names = append(names, part.Name)
	}
	assert.Equal(t, []string{
		KeyFirstName, KeyLastName, KeyDOB, KeyOccupation, KeyGender,
		KeyEmail, KeyPhone,
		KeyStreet, KeyCity, KeyState, KeyCountry, KeyZipCode,
		KeyPastSchool, KeyPastSchool,
		KeyPhoto,
	}, names)
	assert.Equal(t, []string{"Cambridge", "Home"}, f.Values(KeyPastSchool))
}

func TestEncodeNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*model.NewRecord)
		wantField string
	}{
		{"missing first name", func(r *model.NewRecord) { r.FirstName = "" }, "firstName"},
		{"missing dob", func(r *model.NewRecord) { r.DOB = "" }, "dob"},
		{"missing email", func(r *model.NewRecord) { r.Contact.Email = "" }, "contact.email"},
		{"bad email", func(r *model.NewRecord) { r.Contact.Email = "not-an-email" }, "contact.email"},
		{"missing phone", func(r *model.NewRecord) { r.Contact.Phone = "" }, "contact.phone"},
		{"bad linkedin", func(r *model.NewRecord) { r.Contact.LinkedInURL = model.String("nope") }, "contact.linkedInUrl"},
		{"missing zip", func(r *model.NewRecord) { r.Address.ZipCode = "" }, "address.zipCode"},
		{"blank school", func(r *model.NewRecord) { r.Academics.PastSchools[0].Name = "" }, "academics.pastSchools[0].name"},
		{"missing photo", func(r *model.NewRecord) { r.Photo = model.Photo{} }, "photo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.NewRecord{Profile: adaProfile(), Photo: adaPhoto()}
			tt.mutate(&rec)

			f, err := EncodeNew(rec)
			assert.Nil(t, f)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.wantField), "violations: %v", verr.Fields)
		})
	}
}

func TestEncodeNew_DoesNotMutateInput(t *testing.T) {
	p := adaProfile()
	p.Contact.Fax = model.String("")
	rec := model.NewRecord{Profile: p, Photo: adaPhoto()}

	_, err := EncodeNew(rec)
	require.NoError(t, err)
	require.NotNil(t, rec.Contact.Fax)
}

func TestEncodeExisting(t *testing.T) {
	t.Run("without photo", func(t *testing.T) {
		f, err := EncodeExisting(model.ExistingRecord{ID: 3, Profile: adaProfile()})
		require.NoError(t, err)
		assert.False(t, f.Has(KeyPhoto))
	})

	t.Run("with replacement photo", func(t *testing.T) {
		photo := adaPhoto()
		f, err := EncodeExisting(model.ExistingRecord{ID: 3, Profile: adaProfile(), Photo: &photo})
		require.NoError(t, err)
		assert.True(t, f.Has(KeyPhoto))
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := EncodeExisting(model.ExistingRecord{Profile: adaProfile()})
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("id"))
	})

	t.Run("decoded record without year re-encodes", func(t *testing.T) {
		p := adaProfile()
		p.Academics.PastSchools[0].Year = ""
		_, err := EncodeExisting(model.ExistingRecord{ID: 3, Profile: p})
		assert.NoError(t, err)
	})
}

func TestForm_Body(t *testing.T) {
	f, err := EncodeNew(model.NewRecord{Profile: adaProfile(), Photo: adaPhoto()})
	require.NoError(t, err)

	body, contentType, err := f.Body()
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ada"}, form.Value[KeyFirstName])
	assert.Equal(t, []string{"a@x.com"}, form.Value[KeyEmail])
	assert.Equal(t, []string{"Cambridge"}, form.Value[KeyPastSchool])
	_, hasFax := form.Value[KeyFax]
	assert.False(t, hasFax)

	require.Len(t, form.File[KeyPhoto], 1)
	fh := form.File[KeyPhoto][0]
	assert.Equal(t, "ada.png", fh.Filename)
	assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))

	rc, err := fh.Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, adaPhoto().Content, content)
}
