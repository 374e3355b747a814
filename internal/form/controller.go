package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
)

// SubmitHandler receives a validated draft.
type SubmitHandler func(ctx context.Context, d Draft) error

// Controller owns the draft behind the task form.
//
// It is not safe for concurrent use; the page that owns it serializes access.
type Controller struct {
	validator *Validator
	onSubmit  SubmitHandler
	action    Submitter
	logger    *slog.Logger

	draft     Draft
	fieldErrs FieldErrors
}

// Option configures a Controller.
type Option func(*Controller)

// WithAction forwards every accepted draft to s after the local handler.
// Failures of s are logged and otherwise ignored.
func WithAction(s Submitter) Option {
	return func(c *Controller) { c.action = s }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController returns a controller with an empty draft.
func NewController(v *Validator, onSubmit SubmitHandler, opts ...Option) *Controller {
	c := &Controller{
		validator: v,
		onSubmit:  onSubmit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Draft returns the current field values.
func (c *Controller) Draft() Draft {
	return c.draft
}

// Errors returns the field errors of the last failed submission, if any.
func (c *Controller) Errors() FieldErrors {
	return maps.Clone(c.fieldErrs)
}

// Set binds value to field.
func (c *Controller) Set(field, value string) error {
	d, err := c.draft.With(field, value)
	if err != nil {
		return err
	}
	c.draft = d
	return nil
}

// Bind replaces the whole draft.
func (c *Controller) Bind(d Draft) {
	c.draft = d
}

// Reject records errors found outside Submit, such as a malformed submission.
func (c *Controller) Reject(fe FieldErrors) {
	c.fieldErrs = maps.Clone(fe)
}

// Reset clears both fields and any errors.
func (c *Controller) Reset() {
	c.draft = Draft{}
	c.fieldErrs = nil
}

// Submit validates the draft and hands it to the submit handler.
//
// On validation failure the fields stay populated, the handler is not
// called and the FieldErrors are returned. On success the form is reset
// and the accepted draft returned. Errors always reflects this call only.
func (c *Controller) Submit(ctx context.Context) (Draft, error) {
	c.fieldErrs = nil
	d, err := c.validator.Validate(c.draft)
	if err != nil {
		var fe FieldErrors
		if errors.As(err, &fe) {
			c.fieldErrs = fe
		}
		return Draft{}, err
	}

	if err := c.onSubmit(ctx, d); err != nil {
		return Draft{}, fmt.Errorf("submit handler: %w", err)
	}

	if c.action != nil {
		if err := c.action.Submit(ctx, d); err != nil {
			c.logger.WarnContext(ctx, "form action failed", slog.Any("error", err))
		}
	}

	c.Reset()
	return d, nil
}
