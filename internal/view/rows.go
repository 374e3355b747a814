// Package view renders the todo page.
//
// Rendering is a pure projection: the same tasks, draft and errors always
// produce the same HTML.
package view

import "github.com/broady/todoform/internal/task"

// Row is the display state of one task.
type Row struct {
	ID      int
	Title   string
	DueDate string
	// Faded rows are drawn at reduced opacity.
	Faded bool
	// SwitchOn puts the toggle in its shifted, highlighted position.
	SwitchOn bool
}

// Rows projects tasks into rows, keeping their order.
func Rows(tasks []task.Task) []Row {
	rows := make([]Row, len(tasks))
	for i, t := range tasks {
		rows[i] = Row{
			ID:       t.ID,
			Title:    t.Title,
			DueDate:  t.DueDate,
			Faded:    t.Completed,
			SwitchOn: t.Completed,
		}
	}
	return rows
}

// RowClass is the CSS class list of the row container.
func (r Row) RowClass() string {
	if r.Faded {
		return "task task--faded"
	}
	return "task"
}

// SwitchClass is the CSS class list of the toggle.
func (r Row) SwitchClass() string {
	if r.SwitchOn {
		return "switch switch--on"
	}
	return "switch switch--off"
}
