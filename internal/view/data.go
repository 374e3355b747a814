package view

import (
	"strconv"

	"github.com/broady/todoform/internal/form"
)

// Head is the document metadata.
type Head struct {
	Title       string
	Description string
}

// PageData is everything the page projects.
type PageData struct {
	Head   Head
	Draft  form.Draft
	Errors form.FieldErrors
	Rows   []Row
}

// ToggleAction is the form action that toggles task id.
func ToggleAction(id int) string {
	return "/tasks/" + strconv.Itoa(id) + "/toggle"
}

// ElementID is the DOM id of the row for task id.
func ElementID(id int) string {
	return "task-" + strconv.Itoa(id)
}
