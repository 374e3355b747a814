// Package page is the single todo page: one task store, one form, one renderer.
package page

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/broady/todoform/internal/form"
	"github.com/broady/todoform/internal/task"
	"github.com/broady/todoform/internal/view"
)

// Config configures a View.
type Config struct {
	Head   view.Head
	Form   form.Options
	Action form.Submitter // optional server-side form action
	Logger *slog.Logger
}

// FormState is the form as a client sees it.
type FormState struct {
	Draft  form.Draft       `json:"draft"`
	Errors form.FieldErrors `json:"errors,omitempty"`
}

// View owns the page state. User actions run one at a time.
type View struct {
	mu     sync.Mutex
	head   view.Head
	store  *task.Store
	form   *form.Controller
	logger *slog.Logger

	// added is the task created by the submission in progress.
	added task.Task
}

// New returns a page with an empty list and an empty form.
func New(cfg Config) *View {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := &View{
		head:   cfg.Head,
		store:  task.NewStore(),
		logger: logger,
	}
	opts := []form.Option{form.WithLogger(logger)}
	if cfg.Action != nil {
		opts = append(opts, form.WithAction(cfg.Action))
	}
	v.form = form.NewController(form.NewValidator(cfg.Form), v.addTask, opts...)
	return v
}

func (v *View) addTask(_ context.Context, d form.Draft) error {
	v.added = v.store.Add(d.Title, d.DueDate)
	return nil
}

// Store exposes the task store for observers.
func (v *View) Store() *task.Store {
	return v.store
}

// Form returns the current form state.
func (v *View) Form() FormState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.formState()
}

func (v *View) formState() FormState {
	return FormState{Draft: v.form.Draft(), Errors: v.form.Errors()}
}

// Bind sets one form field.
func (v *View) Bind(field, value string) (FormState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.form.Set(field, value); err != nil {
		return v.formState(), err
	}
	return v.formState(), nil
}

// Submit submits the bound draft. On success the new task is returned and
// the form is empty; on validation failure err is form.FieldErrors.
func (v *View) Submit(ctx context.Context) (task.Task, FormState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submit(ctx)
}

func (v *View) submit(ctx context.Context) (task.Task, FormState, error) {
	if _, err := v.form.Submit(ctx); err != nil {
		return task.Task{}, v.formState(), err
	}
	t := v.added
	v.logger.InfoContext(ctx, "task added",
		slog.Int("id", t.ID),
		slog.String("title", t.Title),
		slog.String("dueDate", t.DueDate))
	return t, v.formState(), nil
}

// SubmitValues binds posted form values and submits them.
// Values that are present are kept in the form even if the submission fails.
func (v *View) SubmitValues(ctx context.Context, values url.Values) (task.Task, FormState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	d, err := form.DecodeDraft(values)
	if err != nil {
		var fe form.FieldErrors
		if !errors.As(err, &fe) {
			return task.Task{}, v.formState(), err
		}
		for _, f := range form.Fields {
			if vals, ok := values[f]; ok && len(vals) > 0 {
				_ = v.form.Set(f, vals[0])
			}
		}
		v.form.Reject(fe)
		return task.Task{}, v.formState(), fe
	}
	v.form.Bind(d)
	return v.submit(ctx)
}

// Toggle flips the completion of task id. Unknown ids are ignored.
func (v *View) Toggle(id int) (task.Task, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.store.Toggle(id)
	if ok {
		v.logger.Debug("task toggled", slog.Int("id", id), slog.Bool("completed", t.Completed))
	}
	return t, ok
}

// Tasks returns the current list.
func (v *View) Tasks() []task.Task {
	return v.store.List()
}

// Data snapshots everything the renderer needs.
func (v *View) Data() view.PageData {
	v.mu.Lock()
	defer v.mu.Unlock()
	fs := v.formState()
	return view.PageData{
		Head:   v.head,
		Draft:  fs.Draft,
		Errors: fs.Errors,
		Rows:   view.Rows(v.store.List()),
	}
}

// Render writes the page.
func (v *View) Render(ctx context.Context, w io.Writer) error {
	return view.Page(v.Data()).Render(ctx, w)
}
