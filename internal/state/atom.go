// Package state holds observable values.
package state

import (
	"context"
	"iter"
	"sync"
)

// Atom holds a single value that can be read, replaced and observed.
//
// Observers come in two flavors. Subscribe returns an iterator for
// goroutines that want the latest value; a slow subscriber skips
// intermediate values (latest wins). Watch registers a callback that sees
// every change, in order, on the mutating goroutine.
//
// Values are shared with observers, so T should be treated as immutable
// once stored: replace, don't mutate.
type Atom[T any] struct {
	mu          sync.RWMutex
	value       T
	subscribers map[int64]chan T
	watchers    map[int64]func(T)
	nextID      int64

	// notifyMu orders watcher callbacks without holding mu during them.
	notifyMu sync.Mutex
}

// NewAtom creates an Atom holding initial.
func NewAtom[T any](initial T) *Atom[T] {
	return &Atom[T]{
		value:       initial,
		subscribers: make(map[int64]chan T),
		watchers:    make(map[int64]func(T)),
	}
}

// Get returns the current value.
func (a *Atom[T]) Get() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Set replaces the value and notifies observers.
func (a *Atom[T]) Set(value T) {
	a.Update(func(T) (T, bool) { return value, true })
}

// Update applies fn to the current value under the write lock.
// When fn reports false the value is left alone and nobody is notified.
// Update returns the resulting value and whether it changed.
func (a *Atom[T]) Update(fn func(T) (T, bool)) (T, bool) {
	a.mu.Lock()
	next, changed := fn(a.value)
	if !changed {
		current := a.value
		a.mu.Unlock()
		return current, false
	}
	a.value = next
	for _, ch := range a.subscribers {
		offer(ch, next)
	}
	watchers := make([]func(T), 0, len(a.watchers))
	for _, w := range a.watchers {
		watchers = append(watchers, w)
	}
	a.notifyMu.Lock()
	a.mu.Unlock()

	defer a.notifyMu.Unlock()
	for _, w := range watchers {
		w(next)
	}
	return next, true
}

// offer delivers v without blocking, replacing any value still queued.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Watch calls fn after every change until the returned cancel func is called.
// fn receives the new value and must not call back into the same Atom.
func (a *Atom[T]) Watch(fn func(T)) (cancel func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.watchers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	}
}

// Subscribe yields the current value and then every update until ctx is
// done or the consumer stops.
func (a *Atom[T]) Subscribe(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		ch := make(chan T, 1)

		a.mu.Lock()
		id := a.nextID
		a.nextID++
		a.subscribers[id] = ch
		current := a.value
		a.mu.Unlock()

		defer func() {
			a.mu.Lock()
			delete(a.subscribers, id)
			a.mu.Unlock()
		}()

		if !yield(current) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-ch:
				if !yield(v) {
					return
				}
			}
		}
	}
}
