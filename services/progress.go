package services

import (
	"sort"
	"sync"
)

// TaskTable is a concurrency-safe keyed set of task states. Every change is
// broadcast to subscribers as a fresh snapshot; a slow subscriber only ever
// misses intermediate snapshots, never the latest one.
type TaskTable[T any] struct {
	mu      sync.RWMutex
	items   map[string]T
	less    func(a, b T) bool
	subs    map[int]*subscription[T]
	nextSub int
}

type subscription[T any] struct {
	ch   chan []T
	keep func(T) bool
}

func NewTaskTable[T any](less func(a, b T) bool) *TaskTable[T] {
	return &TaskTable[T]{
		items: make(map[string]T),
		less:  less,
		subs:  make(map[int]*subscription[T]),
	}
}

func (t *TaskTable[T]) Put(id string, item T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[id] = item
	t.broadcast()
}

// Update applies fn to the stored item. fn reports whether it changed
// anything; unchanged items are not broadcast.
func (t *TaskTable[T]) Update(id string, fn func(*T) bool) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	if fn(&item) {
		t.items[id] = item
		t.broadcast()
	}
	return item, true
}

func (t *TaskTable[T]) Get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[id]
	return item, ok
}

func (t *TaskTable[T]) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[id]; !ok {
		return
	}
	delete(t.items, id)
	t.broadcast()
}

// RemoveWhere drops every item matching drop and returns how many went.
func (t *TaskTable[T]) RemoveWhere(drop func(T) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, item := range t.items {
		if drop(item) {
			delete(t.items, id)
			n++
		}
	}
	if n > 0 {
		t.broadcast()
	}
	return n
}

// Snapshot returns the items matching keep (all when keep is nil) in table order.
func (t *TaskTable[T]) Snapshot(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked(keep)
}

// Subscribe returns a channel that immediately receives the current snapshot
// and then one after every change. Call cancel to stop; it closes the channel.
func (t *TaskTable[T]) Subscribe(keep func(T) bool) (<-chan []T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &subscription[T]{ch: make(chan []T, 1), keep: keep}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = sub
	sub.ch <- t.snapshotLocked(keep)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (t *TaskTable[T]) snapshotLocked(keep func(T) bool) []T {
	out := make([]T, 0, len(t.items))
	for _, item := range t.items {
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	if t.less != nil {
		sort.Slice(out, func(i, j int) bool { return t.less(out[i], out[j]) })
	}
	return out
}

// broadcast must be called with t.mu held for writing.
func (t *TaskTable[T]) broadcast() {
	for _, sub := range t.subs {
		snap := t.snapshotLocked(sub.keep)
		select {
		case sub.ch <- snap:
		default:
			// Replace the stale snapshot the subscriber has not read yet.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}
