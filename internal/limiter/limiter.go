package limiter

import (
	"sync"
)

type pairKey struct {
	chatID int64
	userID int64
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// PairLocker serializes handler work per (chat, user) pair. Updates are
// handled on separate goroutines, so the read-modify-write sequences in
// the quota and force-sub paths need mutual exclusion for the same sender
// in the same group; unrelated pairs proceed in parallel.
type PairLocker struct {
	mu    sync.Mutex
	pairs map[pairKey]*entry
}

// NewPairLocker creates an empty pair locker.
func NewPairLocker() *PairLocker {
	return &PairLocker{
		pairs: make(map[pairKey]*entry),
	}
}

// Lock acquires the mutex for a (chat, user) pair and returns the
// matching unlock function.
func (l *PairLocker) Lock(chatID, userID int64) func() {
	key := pairKey{chatID: chatID, userID: userID}

	l.mu.Lock()
	e, ok := l.pairs[key]
	if !ok {
		e = &entry{}
		l.pairs[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.pairs, key)
		}
		l.mu.Unlock()
	}
}

// ActivePairs returns the number of pairs currently tracked.
func (l *PairLocker) ActivePairs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pairs)
}
