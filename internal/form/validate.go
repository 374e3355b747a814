package form

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxLength bounds each field when Options.MaxLength is unset.
const DefaultMaxLength = 1024

// Options tune validation.
type Options struct {
	// RequireNonEmpty rejects empty strings. Off by default: any string,
	// including "", is a valid title or due date.
	RequireNonEmpty bool
	// MaxLength caps each field in bytes. Zero means DefaultMaxLength.
	MaxLength int
}

// Validator checks drafts before they become tasks.
type Validator struct {
	v    *validator.Validate
	opts Options
}

// NewValidator builds a Validator for opts.
func NewValidator(opts Options) *Validator {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	fv := &Validator{v: v, opts: opts}
	v.RegisterStructValidation(fv.validateDraft, Draft{})
	return fv
}

// Options returns the effective options.
func (fv *Validator) Options() Options {
	return fv.opts
}

func (fv *Validator) validateDraft(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)
	check := func(value, name, structName string) {
		switch {
		case fv.opts.RequireNonEmpty && value == "":
			sl.ReportError(value, name, structName, "required", "")
		case len(value) > fv.opts.MaxLength:
			sl.ReportError(value, name, structName, "max", strconv.Itoa(fv.opts.MaxLength))
		}
	}
	check(d.Title, FieldTitle, "Title")
	check(d.DueDate, FieldDueDate, "DueDate")
}

// Validate returns d unchanged when it is acceptable, or FieldErrors.
func (fv *Validator) Validate(d Draft) (Draft, error) {
	err := fv.v.Struct(d)
	if err == nil {
		return d, nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return d, fmt.Errorf("validate draft: %w", err)
	}
	fe := make(FieldErrors, len(ve))
	for _, e := range ve {
		fe[e.Field()] = message(e)
	}
	return d, fe
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	}
	return fmt.Sprintf("failed %s validation", e.Tag())
}
