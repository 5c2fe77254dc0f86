package service

import (
	"sort"
	"sync"
)

// entityLocks serializes recompute-and-write sequences per entity id.
// Two mutations touching the same income source (or account, or invoice)
// take the same lock, so a later-arriving durable write can never overwrite
// a balance derived from an earlier, now-stale read.
//
// Locks are never removed; the entity population of a single session is
// small enough that the map does not need eviction.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[string]*sync.Mutex)}
}

// forID returns the mutex owned by the given entity id, creating it on
// first use.
func (e *entityLocks) forID(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// lockAll acquires the locks for a set of entity ids, deduplicated and in
// sorted order. Every multi-entity critical section goes through here, so
// two operations contending on overlapping sets always acquire in the same
// order and cannot deadlock each other. Never call it while already holding
// an entity lock. The returned func releases in reverse order.
func (e *entityLocks) lockAll(ids []string) func() {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, len(uniq))
	for i, id := range uniq {
		l := e.forID(id)
		l.Lock()
		held[i] = l
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
