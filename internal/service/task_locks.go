package service

import (
	"sync"

	"github.com/google/uuid"
)

// taskLocks serializes mutations of a single task from the first read to
// the last published event. Entries are dropped once nobody holds them.
type taskLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*taskLock
}

type taskLock struct {
	sync.Mutex
	refs int
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: make(map[uuid.UUID]*taskLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (l *taskLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &taskLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *taskLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
