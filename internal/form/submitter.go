package form

import (
	"context"
	"log/slog"
)

// Submitter is a server-side collaborator that accepts validated drafts.
// Its result is not observed by the form.
type Submitter interface {
	Submit(ctx context.Context, d Draft) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, d Draft) error

func (f SubmitterFunc) Submit(ctx context.Context, d Draft) error {
	return f(ctx, d)
}

// LogSubmitter records received drafts and does nothing else.
type LogSubmitter struct {
	Logger *slog.Logger
}

func (s LogSubmitter) Submit(ctx context.Context, d Draft) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "form action received",
		slog.String("title", d.Title),
		slog.String("dueDate", d.DueDate))
	return nil
}
