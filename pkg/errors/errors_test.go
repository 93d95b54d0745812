package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("escalate: %w", Clone(ErrInvalidTransition, "appeal already at level 2"))
	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInvalidTransition.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "appeal already at level 2", appErr.Message)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorContains(t, appErr, "boom")
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "promoteur not found")
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Equal(t, "promoteur not found", clone.Message)
	assert.Nil(t, FromError(nil))
}

type noteInput struct {
	Note   string `validate:"required"`
	Reason string `validate:"max=3"`
}

func TestValidationListsRejectedFields(t *testing.T) {
	err := validator.New().Struct(noteInput{Reason: "too long"})
	require.Error(t, err)

	appErr := Validation(err, "invalid review note")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, "invalid review note", appErr.Message)
	assert.ElementsMatch(t, []FieldError{{Field: "note", Rule: "required"}, {Field: "reason", Rule: "max"}}, appErr.Fields)
}

func TestIsComparesCodes(t *testing.T) {
	err := fmt.Errorf("assign: %w", Clone(ErrConflict, "appeal already closed"))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}
