package server

import (
	"context"
	"errors"

	"github.com/broady/todoform/internal/form"
	"github.com/broady/todoform/internal/page"
	"github.com/broady/todoform/internal/rpc"
	"github.com/broady/todoform/internal/task"
)

// ToggleParams selects the task to toggle. Any id is accepted; unknown ids are a no-op.
type ToggleParams struct {
	ID *int `json:"id" validate:"required"`
}

// SetFieldParams binds one form field.
type SetFieldParams struct {
	Field string `json:"field" validate:"required,oneof=title dueDate"`
	Value string `json:"value"`
}

// SubmitResult is the form after a successful submission and the task it created.
type SubmitResult struct {
	page.FormState
	Task task.Task `json:"task"`
}

type api struct {
	page *page.View
}

func (a *api) listTasks(ctx context.Context, _ rpc.Empty) ([]task.Task, error) {
	return a.page.Tasks(), nil
}

func (a *api) toggleTask(ctx context.Context, req ToggleParams) ([]task.Task, error) {
	a.page.Toggle(*req.ID)
	return a.page.Tasks(), nil
}

func (a *api) watchTasks(ctx context.Context, _ rpc.Empty, e rpc.Emitter[[]task.Task]) error {
	for tasks := range a.page.Store().Subscribe(ctx) {
		if err := e.Send(tasks); err != nil {
			return err
		}
	}
	return nil
}

func (a *api) getForm(ctx context.Context, _ rpc.Empty) (page.FormState, error) {
	return a.page.Form(), nil
}

func (a *api) setField(ctx context.Context, req SetFieldParams) (page.FormState, error) {
	return a.page.Bind(req.Field, req.Value)
}

func (a *api) submitForm(ctx context.Context, _ rpc.Empty) (SubmitResult, error) {
	t, fs, err := a.page.Submit(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{FormState: fs, Task: t}, nil
}

// register mounts the Tasks and Form services on app.
func (a *api) register(app *rpc.App) {
	tasks := app.Service("Tasks")
	tasks.Register("List", rpc.Query(a.listTasks))
	tasks.Register("Toggle", rpc.Exec(a.toggleTask))
	tasks.Register("Watch", rpc.Stream(a.watchTasks))

	f := app.Service("Form")
	f.Register("Get", rpc.Query(a.getForm))
	f.Register("Set", rpc.Exec(a.setField))
	f.Register("Submit", rpc.Exec(a.submitForm))
}

// transformError maps form errors to invalid_argument with per-field details.
func transformError(err error) *rpc.Error {
	var fe form.FieldErrors
	if errors.As(err, &fe) {
		details := make(map[string]any, len(fe))
		for k, v := range fe {
			details[k] = v
		}
		return rpc.NewError(rpc.CodeInvalidArgument, fe.Error()).WithDetails(details)
	}
	if errors.Is(err, form.ErrUnknownField) {
		return rpc.NewError(rpc.CodeInvalidArgument, err.Error())
	}
	return nil
}
