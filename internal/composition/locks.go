package composition

import "sync"

// Locks serializes ordering mutations per story. The validator's
// read-recompute-write sequence is not safe under concurrent execution
// against the same story; operations on different stories proceed in
// parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*storyLock
}

type storyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*storyLock)}
}

// Lock acquires the mutex for storyID and returns the release func.
// Entries are reference counted so the map does not grow with every
// story ever touched.
func (l *Locks) Lock(storyID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[storyID]
	if !ok {
		sl = &storyLock{}
		l.locks[storyID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, storyID)
		}
		l.mu.Unlock()
	}
}
