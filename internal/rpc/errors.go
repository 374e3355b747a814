package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "invalid_argument"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeCanceled         ErrorCode = "canceled"
	CodeInternal         ErrorCode = "internal"
	CodeUnavailable      ErrorCode = "unavailable"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
)

// Error is the JSON error envelope returned by every endpoint.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new service error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new service error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns a copy of e with details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{Code: e.Code, Message: e.Message, Details: merged}
}

// ErrorTransformer maps an application error to a service error.
// Returning nil falls through to DefaultErrorTransformer.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps standard Go errors to service errors.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return NewError(CodeCanceled, "context canceled")
	case errors.Is(err, ErrStreamClosed):
		return NewError(CodeCanceled, "stream closed")
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any, len(valErrs))
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := ValidationMessage(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	// errors.Join: code and details come from the first error.
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := u.Unwrap(); len(errs) > 0 {
			first := DefaultErrorTransformer(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{
				Code:    first.Code,
				Message: strings.Join(msgs, "; "),
				Details: first.Details,
			}
		}
	}

	return NewError(CodeInternal, err.Error())
}

// HTTPStatus maps an ErrorCode to an HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeCanceled:
		return 499 // Client Closed Request (nginx)
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ValidationMessage converts a validator.FieldError to a short human-readable message.
func ValidationMessage(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

// handleError runs the configured transformer, masks internal errors if asked and writes the envelope.
func handleError(ctx *rpcContext, err error) {
	var svcErr *Error
	if ctx.errorTransformer != nil {
		svcErr = ctx.errorTransformer(err)
	}
	if svcErr == nil {
		svcErr = DefaultErrorTransformer(err)
	}
	if ctx.maskInternalErrors && svcErr.Code == CodeInternal {
		svcErr = NewError(CodeInternal, "internal server error")
	}
	writeError(ctx.writer, svcErr, ctx.logger)
}

func writeError(w http.ResponseWriter, svcErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, svcErr); err != nil {
		logger.Error("failed to encode error response",
			slog.String("code", string(svcErr.Code)),
			slog.String("message", svcErr.Message),
			slog.Any("error", err))
	}
}
