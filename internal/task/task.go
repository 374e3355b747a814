// Package task holds the todo items of a page session.
package task

// Task is one todo entry. Completed is the only field that changes after creation.
type Task struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	DueDate   string `json:"dueDate"`
	Completed bool   `json:"completed"`
}

// find returns the index of the first task with id, or -1.
func find(tasks []Task, id int) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
