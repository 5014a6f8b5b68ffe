package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type sample struct {
	Email   string `json:"email" validate:"required,email"`
	Country string `json:"country" validate:"required,iso3166_1_alpha2"`
	Note    string `json:"note" validate:"max=5"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Email: "nope", Country: "XX", Note: "too long"})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "validation failed", typed.Message())
	assert.Equal(t, map[string]string{
		"email":   "must be a valid email",
		"country": "must be a two letter country code",
		"note":    "must be at most 5",
	}, typed.Details())
}

func TestStructWithMessage(t *testing.T) {
	err := StructWithMessage(sample{}, "Failed Checkout")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, "Failed Checkout", typed.Message())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["email"])
	assert.Equal(t, "is required", details["country"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Struct(sample{Email: "a@b.co", Country: "IN"}))
}
