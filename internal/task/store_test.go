package task

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddAssignsSequentialIDs(t *testing.T) {
	s := NewStore()
	a := s.Add("buy milk", "2024-05-01")
	b := s.Add("", "")
	c := s.Add("call mom", "tomorrow")

	assert.Equal(t, []int{1, 2, 3}, []int{a.ID, b.ID, c.ID})
	assert.Equal(t, []Task{
		{ID: 1, Title: "buy milk", DueDate: "2024-05-01"},
		{ID: 2},
		{ID: 3, Title: "call mom", DueDate: "tomorrow"},
	}, s.List())
}

func TestStore_ToggleIsInvolution(t *testing.T) {
	s := NewStore()
	s.Add("a", "x")
	s.Add("b", "y")
	before := s.List()

	got, ok := s.Toggle(2)
	require.True(t, ok)
	assert.True(t, got.Completed)
	assert.False(t, s.List()[0].Completed)

	got, ok = s.Toggle(2)
	require.True(t, ok)
	assert.False(t, got.Completed)
	assert.Equal(t, before, s.List())
}

func TestStore_ToggleUnknownIsNoop(t *testing.T) {
	s := NewStore()
	s.Add("a", "x")
	notified := 0
	cancel := s.Watch(func([]Task) { notified++ })
	defer cancel()

	_, ok := s.Toggle(42)
	assert.False(t, ok)
	assert.Zero(t, notified)
	assert.Equal(t, []Task{{ID: 1, Title: "a", DueDate: "x"}}, s.List())
}

func TestStore_SnapshotsAreImmutable(t *testing.T) {
	s := NewStore()
	s.Add("a", "x")
	snap := s.List()
	snap[0].Title = "mutated"

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)

	var watched []Task
	cancel := s.Watch(func(ts []Task) { watched = ts })
	defer cancel()
	s.Toggle(1)
	s.Toggle(1)
	require.Len(t, watched, 1)
	assert.False(t, watched[0].Completed)
}

func TestStore_WatchOrder(t *testing.T) {
	s := NewStore()
	var lens []int
	cancel := s.Watch(func(ts []Task) { lens = append(lens, len(ts)) })
	defer cancel()

	s.Add("a", "")
	s.Add("b", "")
	s.Toggle(1)

	assert.Equal(t, []int{1, 2, 2}, lens)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	s.Add("a", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for ts := range s.Subscribe(ctx) {
		assert.Len(t, ts, 1)
		break
	}
}

func TestStore_ConcurrentAddsGetUniqueIDs(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add("t", "d")
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i, tk := range s.List() {
		assert.False(t, seen[tk.ID], "duplicate id %d", tk.ID)
		seen[tk.ID] = true
		assert.Equal(t, i+1, tk.ID)
	}
	assert.Len(t, s.List(), 100)
}

func TestStore_GetMissing(t *testing.T) {
	_, ok := NewStore().Get(1)
	assert.False(t, ok)
}
