package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/validation"
)

type bookRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	CoverURL    string `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	TotalCopies int    `json:"total_copies" validate:"min=1"`
	Internal    string `json:"-" validate:"omitempty,max=1"`
}

func TestValidator_Success(t *testing.T) {
	v := validation.New()

	err := v.Validate(bookRequest{Title: "Dune", TotalCopies: 3})
	assert.NoError(t, err)
}

func TestValidator_FieldMessages(t *testing.T) {
	v := validation.New()

	err := v.Validate(bookRequest{Title: "   ", CoverURL: "not a url", TotalCopies: 0})
	require.Error(t, err)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus())

	fields := validation.FieldErrors(err)
	assert.Equal(t, "is required", fields["title"])
	assert.Equal(t, "must be a valid URL", fields["cover_image_url"])
	assert.Equal(t, "must be at least 1", fields["total_copies"])
}

func TestValidator_StringLengthMessage(t *testing.T) {
	v := validation.New()

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	fields := validation.FieldErrors(v.Validate(bookRequest{Title: string(long), TotalCopies: 1}))
	assert.Equal(t, "must not exceed 200 characters", fields["title"])
}

func TestFieldErrors_NonValidationError(t *testing.T) {
	assert.Nil(t, validation.FieldErrors(domainerrors.Forbidden("nope")))
	assert.Nil(t, validation.FieldErrors(nil))
}
