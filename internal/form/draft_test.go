package form

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDraft(t *testing.T) {
	d, err := DecodeDraft(url.Values{"title": {"buy milk"}, "dueDate": {"2024-05-01"}, "extra": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, Draft{Title: "buy milk", DueDate: "2024-05-01"}, d)
}

func TestDecodeDraft_EmptyValuesArePresent(t *testing.T) {
	d, err := DecodeDraft(url.Values{"title": {""}, "dueDate": {""}})
	require.NoError(t, err)
	assert.Equal(t, Draft{}, d)
}

func TestDecodeDraft_MissingKeys(t *testing.T) {
	_, err := DecodeDraft(url.Values{"title": {"only title"}})

	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FieldErrors{FieldDueDate: "required"}, fe)

	_, err = DecodeDraft(url.Values{})
	require.True(t, errors.As(err, &fe))
	assert.Len(t, fe, 2)
}

func TestDraft_With(t *testing.T) {
	d, err := Draft{}.With(FieldTitle, "a")
	require.NoError(t, err)
	d, err = d.With(FieldDueDate, "b")
	require.NoError(t, err)

	assert.Equal(t, Draft{Title: "a", DueDate: "b"}, d)

	_, err = d.With("colour", "red")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{FieldTitle: "required", FieldDueDate: "required"}
	assert.Equal(t, "invalid form: dueDate: required; title: required", fe.Error())
}
