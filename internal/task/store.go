package task

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/broady/todoform/internal/state"
)

// Store is the ordered, in-memory task collection of one page session.
//
// Each mutation publishes a fresh snapshot; snapshots handed out by List,
// Subscribe and Watch are never modified afterwards.
type Store struct {
	// mu serializes id assignment with the append so ids stay unique.
	mu     sync.Mutex
	nextID int
	tasks  *state.Atom[[]Task]
}

// NewStore returns an empty store. The first task gets id 1.
func NewStore() *Store {
	return &Store{
		nextID: 1,
		tasks:  state.NewAtom([]Task{}),
	}
}

// Add appends a new incomplete task and returns it.
//
// Ids come from a counter rather than max(ids)+1; the two agree because
// tasks are never removed.
func (s *Store) Add(title, dueDate string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Task{ID: s.nextID, Title: title, DueDate: dueDate}
	s.nextID++
	s.tasks.Update(func(cur []Task) ([]Task, bool) {
		next := make([]Task, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, t), true
	})
	return t
}

// Toggle flips Completed on the task with id and returns the updated task.
// An unknown id is a no-op: ok is false and observers are not notified.
func (s *Store) Toggle(id int) (t Task, ok bool) {
	s.tasks.Update(func(cur []Task) ([]Task, bool) {
		i := find(cur, id)
		if i < 0 {
			return cur, false
		}
		next := make([]Task, len(cur))
		copy(next, cur)
		next[i].Completed = !next[i].Completed
		t, ok = next[i], true
		return next, true
	})
	return t, ok
}

// Get returns the task with id.
func (s *Store) Get(id int) (Task, bool) {
	cur := s.tasks.Get()
	if i := find(cur, id); i >= 0 {
		return cur[i], true
	}
	return Task{}, false
}

// List returns the tasks in insertion order.
func (s *Store) List() []Task {
	return slices.Clone(s.tasks.Get())
}

// Subscribe yields the current list and then every change until ctx is done.
func (s *Store) Subscribe(ctx context.Context) iter.Seq[[]Task] {
	return s.tasks.Subscribe(ctx)
}

// Watch calls fn with the new list after every change.
// fn must not call back into the Store.
func (s *Store) Watch(fn func([]Task)) (cancel func()) {
	return s.tasks.Watch(fn)
}
