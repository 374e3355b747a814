// Package form implements the task entry form: field bindings, validation
// and submission of a draft.
package form

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/schema"
)

// Field names as they appear in HTML inputs and JSON.
const (
	FieldTitle   = "title"
	FieldDueDate = "dueDate"
)

// Fields lists the bindable fields in display order.
var Fields = []string{FieldTitle, FieldDueDate}

// ErrUnknownField is returned when binding a field the form does not have.
var ErrUnknownField = errors.New("unknown field")

// Draft is the unvalidated form input.
type Draft struct {
	Title   string `json:"title" schema:"title"`
	DueDate string `json:"dueDate" schema:"dueDate"`
}

// With returns a copy of d with field set to value.
func (d Draft) With(field, value string) (Draft, error) {
	switch field {
	case FieldTitle:
		d.Title = value
	case FieldDueDate:
		d.DueDate = value
	default:
		return d, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return d, nil
}

// FieldErrors maps field names to validation messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// DecodeDraft reads a draft from submitted form values.
//
// Both keys must be present; a present but empty value is still a string
// and decodes fine. Missing keys are reported as FieldErrors.
func DecodeDraft(values url.Values) (Draft, error) {
	missing := FieldErrors{}
	for _, f := range Fields {
		if _, ok := values[f]; !ok {
			missing[f] = "required"
		}
	}
	if len(missing) > 0 {
		return Draft{}, missing
	}

	var d Draft
	if err := decoder.Decode(&d, values); err != nil {
		var multi schema.MultiError
		if errors.As(err, &multi) {
			fe := FieldErrors{}
			for key, ferr := range multi {
				fe[key] = ferr.Error()
			}
			return Draft{}, fe
		}
		return Draft{}, fmt.Errorf("decode form: %w", err)
	}
	return d, nil
}
